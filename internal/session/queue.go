// SPDX-License-Identifier: MIT
package session

import (
	"sync"

	"airsync/internal/codec"
)

type commandKind uint8

const (
	cmdPacket commandKind = iota
	cmdVolume
	cmdEnd
)

type command struct {
	kind   commandKind
	frame  codec.CompressedFrame
	volume float32
}

// queue is the unbounded FIFO between the controller and the worker.
// Push never blocks; pop blocks until a command arrives or the queue is closed.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []command
	head   int
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(c command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, c)
	q.cond.Signal()
	return nil
}

// pop returns the oldest command. Once the queue is closed and empty it
// returns ErrClosed.
func (q *queue) pop() (command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head == len(q.items) {
		return command{}, ErrClosed
	}
	c := q.items[q.head]
	q.items[q.head] = command{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return c, nil
}

// drain discards everything queued and returns how many commands were dropped.
func (q *queue) drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items) - q.head
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return n
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// close rejects further pushes and wakes a blocked pop.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
