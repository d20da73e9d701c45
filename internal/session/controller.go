// SPDX-License-Identifier: MIT

/*
Package session owns the playback lifecycle: it configures a decoder for the
negotiated format, runs one decode worker per session and multiplexes audio
packets with volume and stop commands on a single ordered queue.

State machine:

	Idle -> Starting -> Running -> Stopping -> Idle

Commands submitted to a running session are processed strictly in arrival
order, so a volume change or stop applies after every packet queued before it
and before every packet queued after it.
*/
package session

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"airsync/internal/audio"
	"airsync/internal/codec"
	"airsync/internal/dsp"
	"airsync/internal/log"
	"airsync/internal/ring"
)

var (
	ErrConfiguration = errors.New("session configuration failed")
	ErrNotRunning    = errors.New("session not running")
	ErrClosed        = errors.New("command channel closed")
	ErrInvalidVolume = errors.New("invalid volume")
)

// DefaultVolume is the gain a controller starts with.
const DefaultVolume float32 = 0.5

// State is the controller's lifecycle state.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Tap receives every normalized frame on the worker goroutine. Write must
// not retain samples after it returns.
type Tap interface {
	Open(sampleRate, channels int) error
	Write(samples []int16)
	Close() error
}

// Options configures a Controller. Zero values for BufferCapacity and Step
// select the defaults. A zero DriftMargin pins the rate at nominal and a zero
// InitialVolume is mute; DefaultOptions fills both.
type Options struct {
	Backend        audio.Backend
	DeviceID       int
	BufferCapacity int
	DriftMargin    float64 // fraction of the nominal rate
	Step           int     // Hz per adjustment, 0 = device channel count
	Watermarks     map[codec.Kind]dsp.Watermarks
	InitialVolume  float32
	Taps           []Tap
}

// DefaultOptions returns options for the default output device of b.
func DefaultOptions(b audio.Backend) Options {
	return Options{
		Backend:        b,
		DeviceID:       -1,
		BufferCapacity: ring.DefaultCapacity,
		DriftMargin:    dsp.DefaultDriftMargin,
		InitialVolume:  DefaultVolume,
	}
}

// Controller is the inbound interface of the engine. All methods are safe
// for concurrent use.
type Controller struct {
	opts Options

	mu    sync.Mutex // serialises lifecycle transitions
	state atomic.Int32
	sess  *session
	last  Stats

	volume atomic.Uint32 // float32 bits; volume for the next session
}

func NewController(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("%w: no audio backend", ErrConfiguration)
	}
	if opts.BufferCapacity == 0 {
		opts.BufferCapacity = ring.DefaultCapacity
	}
	if opts.DriftMargin < 0 || math.IsNaN(opts.DriftMargin) {
		return nil, fmt.Errorf("%w: drift margin %v", ErrConfiguration, opts.DriftMargin)
	}
	if err := validVolume(opts.InitialVolume); err != nil {
		return nil, err
	}
	c := &Controller{opts: opts}
	c.volume.Store(math.Float32bits(opts.InitialVolume))
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// ConfigureAudio starts a session for the negotiated format. A running
// session is stopped first. On error the controller stays Idle and the
// error wraps ErrConfiguration.
func (c *Controller) ConfigureAudio(kind codec.Kind, blob []byte, sampleRate, channels int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		log.Infof("Session: reconfigure requested, stopping current %s session", c.sess.kind)
		c.stopLocked()
	}
	c.state.Store(int32(Starting))

	dec, err := codec.Configure(kind, blob, sampleRate, channels)
	if err != nil {
		c.state.Store(int32(Idle))
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	buf, err := ring.New(c.opts.BufferCapacity)
	if err != nil {
		dec.Close()
		c.state.Store(int32(Idle))
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	s := newSession(c, kind, dec, buf)
	ready := make(chan error, 1)
	go s.run(ready)
	if err := <-ready; err != nil {
		<-s.done
		c.state.Store(int32(Idle))
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	c.sess = s
	c.state.Store(int32(Running))
	log.Infof("Session: running %s at %d Hz, %d ch (volume %.2f)", kind, sampleRate, channels, c.loadVolume())
	return nil
}

// SubmitPacket queues one compressed frame. The payload is copied.
func (c *Controller) SubmitPacket(payload []byte, timestamp uint32) error {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil || c.State() != Running {
		return ErrNotRunning
	}
	err := s.queue.push(command{
		kind:  cmdPacket,
		frame: codec.CompressedFrame{Payload: append([]byte(nil), payload...), Timestamp: timestamp},
	})
	if err == nil {
		s.received.Add(1)
	}
	return err
}

// SetVolume changes the gain. While a session runs the change is ordered
// with the queued packets; while idle it becomes the next session's volume.
func (c *Controller) SetVolume(gain float32) error {
	if err := validVolume(gain); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume.Store(math.Float32bits(gain))
	if c.sess == nil || c.State() != Running {
		return nil
	}
	return c.sess.queue.push(command{kind: cmdVolume, volume: gain})
}

// StopAudio sends End after everything already queued and waits for the
// worker to finish it. Calling it while idle does nothing.
func (c *Controller) StopAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return
	}
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	s := c.sess
	c.state.Store(int32(Stopping))
	if err := s.queue.push(command{kind: cmdEnd}); err != nil {
		log.Debugf("Session: %v, worker already stopping", err)
	}
	<-s.done
	s.queue.close()

	c.last = s.snapshot()
	c.last.State = Idle
	c.sess = nil
	c.state.Store(int32(Idle))
	log.Infof("Session: stopped (%d frames decoded, %d decode errors, %d samples dropped)",
		c.last.FramesDecoded, c.last.DecodeErrors, c.last.DroppedSamples)
}

// workerExited is called by a worker that left its loop without End.
func (c *Controller) workerExited() {
	c.state.CompareAndSwap(int32(Running), int32(Idle))
}

func (c *Controller) loadVolume() float32 {
	return math.Float32frombits(c.volume.Load())
}

func (c *Controller) watermarks(kind codec.Kind, nominal int) dsp.Watermarks {
	if w, ok := c.opts.Watermarks[kind]; ok && w.High > 0 {
		return w
	}
	return dsp.DefaultWatermarks(kind, nominal)
}

// VolumeFromDecibels maps an AirPlay volume (-30..0 dB, -144 for mute) to a
// linear gain in [0, 1].
func VolumeFromDecibels(db float64) float32 {
	if db <= -144 {
		return 0
	}
	return float32(max(db/30+1, 0))
}

func validVolume(gain float32) error {
	if gain < 0 || math.IsNaN(float64(gain)) || math.IsInf(float64(gain), 0) {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, gain)
	}
	return nil
}
