// SPDX-License-Identifier: MIT
/*
Package ring implements the fixed-capacity PCM ring buffer that sits between
the decode worker and the hardware output callback.

Thread Safety:
  - One writer (decode worker) and one reader (output callback)
  - Every operation holds the buffer mutex for the duration of a single
    push or pop only, never across decode or device work
  - Storage is allocated once in New and never grows
*/
package ring

import (
	"errors"
	"sync"
)

// Silence is the sample value used to pad an underrun.
const Silence int16 = 0

// DefaultCapacity holds ~0.74s of 44.1 kHz stereo, the size used by the
// AirPlay receiver this engine plays for.
const DefaultCapacity = 65536

var ErrCapacity = errors.New("ring capacity must be at least 2")

// Buffer is a circular buffer of interleaved int16 samples. Read and write
// positions are tracked modulo the capacity and one slot is always left empty,
// so a buffer of capacity C holds at most C-1 samples.
type Buffer struct {
	mu    sync.Mutex
	data  []int16
	start int // read position
	end   int // write position
}

// New allocates a buffer with room for capacity-1 samples.
func New(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, ErrCapacity
	}
	return &Buffer{data: make([]int16, capacity)}, nil
}

// Cap returns the configured capacity C. Usable space is C-1.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	n := b.length()
	b.mu.Unlock()
	return n
}

// Free returns the number of samples that can be pushed before the buffer is full.
func (b *Buffer) Free() int {
	b.mu.Lock()
	n := len(b.data) - 1 - b.length()
	b.mu.Unlock()
	return n
}

// Push copies as many samples as fit and returns the count accepted. The
// excess is dropped; Push never blocks and never grows the buffer.
func (b *Buffer) Push(samples []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	free := len(b.data) - 1 - b.length()
	n := min(len(samples), free)
	if n == 0 {
		return 0
	}

	// At most two copies: up to the end of storage, then wrap to the front.
	first := copy(b.data[b.end:], samples[:n])
	if first < n {
		copy(b.data, samples[first:n])
	}
	b.end = (b.end + n) % len(b.data)
	return n
}

// Pop fills out with buffered samples and returns how many were genuinely
// buffered. Any remainder of out is overwritten with Silence, so the caller
// never sees stale data.
func (b *Buffer) Pop(out []int16) int {
	b.mu.Lock()
	n := min(len(out), b.length())
	if n > 0 {
		first := copy(out[:n], b.data[b.start:])
		if first < n {
			copy(out[first:n], b.data)
		}
		b.start = (b.start + n) % len(b.data)
	}
	b.mu.Unlock()

	for i := n; i < len(out); i++ {
		out[i] = Silence
	}
	return n
}

// Reset discards all buffered samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.start, b.end = 0, 0
	b.mu.Unlock()
}

// length must be called with mu held.
func (b *Buffer) length() int {
	return (b.end + len(b.data) - b.start) % len(b.data)
}
