// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync/atomic"

	"airsync/internal/log"
	"airsync/internal/ring"
)

// Sink is the hardware callback side of the playback ring buffer.
type Sink struct {
	buf *ring.Buffer

	callbacks     atomic.Uint64
	underruns     atomic.Uint64 // callbacks that had to pad with silence
	silentSamples atomic.Uint64
	deviceErrors  atomic.Uint64 // callbacks with underflow/overflow status
	lastStatus    atomic.Uint32
}

func NewSink(buf *ring.Buffer) *Sink {
	return &Sink{buf: buf}
}

// Fill is the device callback. It pops as many samples as are buffered and
// pads the rest with silence. Hot path: no allocation, no logging, one lock.
func (s *Sink) Fill(out []int16, status StreamStatus) {
	n := s.buf.Pop(out)
	s.callbacks.Add(1)
	if n < len(out) {
		s.underruns.Add(1)
		s.silentSamples.Add(uint64(len(out) - n))
	}
	if status&(StatusOutputUnderflow|StatusOutputOverflow) != 0 {
		s.deviceErrors.Add(1)
		s.lastStatus.Store(uint32(status))
	}
}

// SinkStats is a snapshot of the callback counters.
type SinkStats struct {
	Callbacks     uint64
	Underruns     uint64
	SilentSamples uint64
	DeviceErrors  uint64
	LastStatus    StreamStatus
}

func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Callbacks:     s.callbacks.Load(),
		Underruns:     s.underruns.Load(),
		SilentSamples: s.silentSamples.Load(),
		DeviceErrors:  s.deviceErrors.Load(),
		LastStatus:    StreamStatus(s.lastStatus.Load()),
	}
}

// Output is an open, running device stream fed by a Sink.
type Output struct {
	Device DeviceInfo
	Config StreamConfig
	Sink   *Sink

	stream Stream
}

// OpenOutput resolves the device, opens a stream pulling from buf and starts it.
func OpenOutput(b Backend, deviceID int, buf *ring.Buffer) (*Output, error) {
	dev, err := b.OutputDevice(deviceID)
	if err != nil {
		return nil, err
	}
	cfg, err := b.SupportedConfig(dev)
	if err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("%w: %q reports %d Hz, %d channels",
			ErrInvalidDevice, dev.Name, cfg.SampleRate, cfg.Channels)
	}

	sink := NewSink(buf)
	stream, err := b.OpenOutput(dev, cfg, sink.Fill)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	log.Infof("Output: playing on %q (%d Hz, %d ch, %d frames/buffer)",
		dev.Name, cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer)

	return &Output{Device: dev, Config: cfg, Sink: sink, stream: stream}, nil
}

// Close stops and releases the device stream.
func (o *Output) Close() error {
	if o.stream == nil {
		return nil
	}
	stopErr := o.stream.Stop()
	closeErr := o.stream.Close()
	o.stream = nil
	if stopErr != nil {
		return fmt.Errorf("failed to stop output stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output stream: %w", closeErr)
	}
	return nil
}
