// SPDX-License-Identifier: MIT

// Package audiotest provides an in-memory audio Backend whose callback is
// driven by the test instead of a device clock.
package audiotest

import (
	"errors"
	"sync"

	"airsync/internal/audio"
)

// Backend is a fake device. Zero values for SampleRate, Channels and
// FramesPerBuffer default to 44100 Hz, stereo, 512 frames.
type Backend struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int

	// Injected failures.
	DeviceErr error
	OpenErr   error
	StartErr  error

	mu      sync.Mutex
	streams []*Stream
}

func (b *Backend) OutputDevice(id int) (audio.DeviceInfo, error) {
	if b.DeviceErr != nil {
		return audio.DeviceInfo{}, b.DeviceErr
	}
	return audio.DeviceInfo{ID: id, Name: "fake output", MaxOutputChannels: b.channels(), DefaultSampleRate: float64(b.rate())}, nil
}

func (b *Backend) SupportedConfig(dev audio.DeviceInfo) (audio.StreamConfig, error) {
	frames := b.FramesPerBuffer
	if frames == 0 {
		frames = audio.DefaultFramesPerBuffer
	}
	return audio.StreamConfig{SampleRate: b.rate(), Channels: b.channels(), FramesPerBuffer: frames}, nil
}

func (b *Backend) OpenOutput(dev audio.DeviceInfo, cfg audio.StreamConfig, cb audio.Callback) (audio.Stream, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	s := &Stream{cfg: cfg, cb: cb, startErr: b.StartErr}
	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.streams...)
}

// Last returns the most recently opened stream, or nil.
func (b *Backend) Last() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

func (b *Backend) rate() int {
	if b.SampleRate == 0 {
		return 44100
	}
	return b.SampleRate
}

func (b *Backend) channels() int {
	if b.Channels == 0 {
		return 2
	}
	return b.Channels
}

var ErrStreamClosed = errors.New("stream closed")

// Stream records its lifecycle and lets the test pull buffers.
type Stream struct {
	mu       sync.Mutex
	cfg      audio.StreamConfig
	cb       audio.Callback
	startErr error
	started  bool
	closed   bool
}

func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Running reports whether the stream is started and not closed.
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Pull invokes the callback once with a device-sized buffer, as the device
// clock would, and returns what it was filled with.
func (s *Stream) Pull(status audio.StreamStatus) ([]int16, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	cb, cfg := s.cb, s.cfg
	s.mu.Unlock()

	out := make([]int16, cfg.FramesPerBuffer*cfg.Channels)
	for i := range out {
		out[i] = -1 // stale marker; the sink must overwrite everything
	}
	cb(out, status)
	return out, nil
}

var _ audio.Backend = (*Backend)(nil)
