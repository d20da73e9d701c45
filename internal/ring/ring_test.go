// SPDX-License-Identifier: MIT
package ring

import (
	"math/rand"
	"sync"
	"testing"
)

func seq(start, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(start + i)
	}
	return s
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{-1, 0, 1} {
		if _, err := New(c); err != ErrCapacity {
			t.Errorf("New(%d) error = %v, want ErrCapacity", c, err)
		}
	}
}

func TestPushPop_Wraparound(t *testing.T) {
	b, _ := New(8)

	if got := b.Push(seq(0, 5)); got != 5 {
		t.Fatalf("Push = %d, want 5", got)
	}
	out := make([]int16, 4)
	if got := b.Pop(out); got != 4 {
		t.Fatalf("Pop = %d, want 4", got)
	}
	// Write position now wraps past the end of storage.
	if got := b.Push(seq(5, 6)); got != 6 {
		t.Fatalf("Push = %d, want 6", got)
	}
	if b.Len() != 7 {
		t.Fatalf("Len = %d, want 7", b.Len())
	}

	out = make([]int16, 7)
	if got := b.Pop(out); got != 7 {
		t.Fatalf("Pop = %d, want 7", got)
	}
	for i, v := range out {
		if v != int16(4+i) {
			t.Errorf("out[%d] = %d, want %d", i, v, 4+i)
		}
	}
}

func TestPush_DropsExactlyTheExcess(t *testing.T) {
	b, _ := New(16)

	b.Push(seq(0, 10))
	free := b.Free()
	if free != 5 {
		t.Fatalf("Free = %d, want 5", free)
	}
	if got := b.Push(seq(10, 9)); got != free {
		t.Errorf("Push accepted %d, want %d", got, free)
	}
	if b.Len() != b.Cap()-1 {
		t.Errorf("Len = %d, want %d (full)", b.Len(), b.Cap()-1)
	}
	if got := b.Push(seq(0, 1)); got != 0 {
		t.Errorf("Push on full buffer accepted %d, want 0", got)
	}

	out := make([]int16, 15)
	b.Pop(out)
	// Oldest samples survive, newest excess was dropped.
	for i, v := range out {
		if v != int16(i) {
			t.Fatalf("out[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestPop_UnderrunPadsSilence(t *testing.T) {
	b, _ := New(16)
	b.Push([]int16{7, 8, 9})

	out := []int16{-1, -1, -1, -1, -1, -1}
	if got := b.Pop(out); got != 3 {
		t.Fatalf("Pop = %d, want 3", got)
	}
	want := []int16{7, 8, 9, Silence, Silence, Silence}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}

	if got := b.Pop(out); got != 0 {
		t.Errorf("Pop on empty = %d, want 0", got)
	}
	for i, v := range out {
		if v != Silence {
			t.Errorf("out[%d] = %d, want silence", i, v)
		}
	}
}

func TestReset(t *testing.T) {
	b, _ := New(8)
	b.Push(seq(0, 5))
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", b.Len())
	}
}

// TestRandomSequences checks the accounting invariants over arbitrary
// push/pop sequences: popped never exceeds pushed and occupancy equals
// pushed-popped, bounded by C-1.
func TestRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, capacity := range []int{2, 3, 17, 1024} {
		b, _ := New(capacity)
		var pushed, popped int
		var next, expect int16

		for range 2000 {
			if rng.Intn(2) == 0 {
				n := rng.Intn(capacity * 2)
				pushed += b.Push(seq(int(next), n))
				next = int16(pushed)
			} else {
				out := make([]int16, rng.Intn(capacity*2))
				got := b.Pop(out)
				for i := range got {
					if out[i] != expect {
						t.Fatalf("cap %d: popped %d, want %d", capacity, out[i], expect)
					}
					expect++
				}
				popped += got
			}

			if popped > pushed {
				t.Fatalf("cap %d: popped %d > pushed %d", capacity, popped, pushed)
			}
			if got := b.Len(); got != pushed-popped || got > capacity-1 {
				t.Fatalf("cap %d: Len = %d, pushed-popped = %d", capacity, got, pushed-popped)
			}
		}
	}
}

func TestConcurrentWriterReader(t *testing.T) {
	b, _ := New(4096)
	const total = 200000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sent := 0
		for sent < total {
			sent += b.Push(seq(sent, min(512, total-sent)))
		}
	}()

	var received int
	go func() {
		defer wg.Done()
		out := make([]int16, 256)
		for received < total {
			n := b.Pop(out)
			for i := range n {
				if out[i] != int16(received+i) {
					t.Errorf("sample %d = %d, want %d", received+i, out[i], int16(received+i))
					return
				}
			}
			received += n
		}
	}()
	wg.Wait()
}

// TestPopZeroAllocs verifies the callback path never allocates.
func TestPopZeroAllocs(t *testing.T) {
	b, _ := New(DefaultCapacity)
	in := seq(0, 1024)
	out := make([]int16, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		b.Push(in)
		b.Pop(out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in push/pop, got %.1f", allocs)
	}
}

func BenchmarkPop(b *testing.B) {
	buf, _ := New(DefaultCapacity)
	in := seq(0, 1024)
	out := make([]int16, 1024)

	b.ReportAllocs()
	for b.Loop() {
		buf.Push(in)
		buf.Pop(out)
	}
}
