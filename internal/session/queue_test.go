// SPDX-License-Identifier: MIT
package session

import (
	"errors"
	"testing"
	"time"

	"airsync/internal/codec"
)

func packetCmd(ts uint32) command {
	return command{kind: cmdPacket, frame: codec.CompressedFrame{Timestamp: ts}}
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue()
	for i := range uint32(100) {
		if err := q.push(packetCmd(i)); err != nil {
			t.Fatal(err)
		}
	}
	if q.len() != 100 {
		t.Fatalf("len = %d, want 100", q.len())
	}
	for i := range uint32(100) {
		c, err := q.pop()
		if err != nil {
			t.Fatal(err)
		}
		if c.frame.Timestamp != i {
			t.Fatalf("pop %d returned timestamp %d", i, c.frame.Timestamp)
		}
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newQueue()
	got := make(chan command)
	go func() {
		c, _ := q.pop()
		got <- c
	}()

	select {
	case <-got:
		t.Fatal("pop returned on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(command{kind: cmdVolume, volume: 0.25})
	select {
	case c := <-got:
		if c.kind != cmdVolume || c.volume != 0.25 {
			t.Errorf("got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestQueue_Close(t *testing.T) {
	q := newQueue()
	q.push(packetCmd(1))

	done := make(chan error)
	q.close()
	if err := q.push(packetCmd(2)); !errors.Is(err, ErrClosed) {
		t.Errorf("push after close = %v, want ErrClosed", err)
	}

	// Items queued before close are still delivered.
	if c, err := q.pop(); err != nil || c.frame.Timestamp != 1 {
		t.Errorf("pop = %+v, %v", c, err)
	}
	go func() {
		_, err := q.pop()
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("pop on closed queue = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pop blocked on closed queue")
	}
}

func TestQueue_Drain(t *testing.T) {
	q := newQueue()
	for i := range uint32(5) {
		q.push(packetCmd(i))
	}
	q.pop()
	if n := q.drain(); n != 4 {
		t.Errorf("drain = %d, want 4", n)
	}
	if q.len() != 0 {
		t.Errorf("len after drain = %d", q.len())
	}
	q.push(packetCmd(9))
	if c, _ := q.pop(); c.frame.Timestamp != 9 {
		t.Errorf("pop after drain = %d", c.frame.Timestamp)
	}
}
