// SPDX-License-Identifier: MIT
/*
Package audio wraps the audio device subsystem and provides the Output Sink,
the pull-based callback that feeds the device from the playback ring buffer.

Thread Safety:
  - The device invokes Sink.Fill on its own real-time thread
  - Fill takes the ring buffer lock for a single pop and never allocates,
    logs or blocks on I/O
  - Sink counters are atomics read by the stats publisher
*/
package audio

import (
	"errors"
	"time"
)

var (
	ErrNoOutputDevice = errors.New("no output device available")
	ErrInvalidDevice  = errors.New("invalid device")
)

// DefaultFramesPerBuffer is the fixed device buffer requested for playback.
const DefaultFramesPerBuffer = 512

// DeviceInfo describes one output-capable device.
type DeviceInfo struct {
	ID                int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatency        time.Duration
	HighLatency       time.Duration

	handle any // backend-specific device reference
}

// StreamConfig is the format the device is opened with.
type StreamConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	Latency         time.Duration
}

// StreamStatus carries the device's per-callback status flags.
type StreamStatus uint32

const (
	StatusOutputUnderflow StreamStatus = 1 << iota
	StatusOutputOverflow
	StatusPrimingOutput
)

// Callback is invoked by the device with the buffer to fill.
type Callback func(out []int16, status StreamStatus)

// Stream is an open device stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend is the device abstraction the playback engine depends on.
type Backend interface {
	// OutputDevice returns the device for id, or the system default for -1.
	OutputDevice(id int) (DeviceInfo, error)
	// SupportedConfig reports the format the device will be opened with.
	SupportedConfig(dev DeviceInfo) (StreamConfig, error)
	// OpenOutput opens a stream that pulls samples through cb.
	OpenOutput(dev DeviceInfo, cfg StreamConfig, cb Callback) (Stream, error)
}
