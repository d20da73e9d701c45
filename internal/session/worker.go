// SPDX-License-Identifier: MIT
package session

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"airsync/internal/audio"
	"airsync/internal/codec"
	"airsync/internal/dsp"
	"airsync/internal/log"
	"airsync/internal/ring"
)

const warnWindow = 2 * time.Second

// session is one configured stream. The decoder, normalizer and rate
// controller belong to the worker goroutine; the atomics are read by Stats.
type session struct {
	ctrl  *Controller
	kind  codec.Kind
	dec   codec.Decoder
	buf   *ring.Buffer
	queue *queue
	done  chan struct{}

	output *audio.Output
	norm   *dsp.Normalizer
	rc     *dsp.RateController
	taps   []Tap
	vol    float32

	nominal          int
	rate             atomic.Int64
	volume           atomic.Uint32
	received         atomic.Uint64
	decoded          atomic.Uint64
	decodeErrors     atomic.Uint64
	conversionErrors atomic.Uint64
	dropped          atomic.Uint64

	decodeWarn  *log.Limiter
	convertWarn *log.Limiter
}

func newSession(c *Controller, kind codec.Kind, dec codec.Decoder, buf *ring.Buffer) *session {
	s := &session{
		ctrl:        c,
		kind:        kind,
		dec:         dec,
		buf:         buf,
		queue:       newQueue(),
		done:        make(chan struct{}),
		nominal:     dec.Format().SampleRate,
		vol:         c.loadVolume(),
		decodeWarn:  log.NewLimiter(warnWindow),
		convertWarn: log.NewLimiter(warnWindow),
	}
	s.rate.Store(int64(s.nominal))
	s.volume.Store(math.Float32bits(s.vol))
	return s
}

// run is the worker goroutine. It obtains the output device, reports the
// outcome on ready, then processes commands until End or a closed queue.
func (s *session) run(ready chan<- error) {
	defer close(s.done)
	defer s.dec.Close()

	if err := s.start(); err != nil {
		ready <- err
		return
	}
	ready <- nil
	defer s.release()

	for {
		cmd, err := s.queue.pop()
		if err != nil {
			log.Warnf("Session: %v, stopping worker", err)
			s.ctrl.workerExited()
			return
		}

		switch cmd.kind {
		case cmdPacket:
			s.process(cmd.frame)
		case cmdVolume:
			s.vol = cmd.volume
			s.volume.Store(math.Float32bits(cmd.volume))
		case cmdEnd:
			s.flush()
			if n := s.queue.drain(); n > 0 {
				log.Infof("Session: discarded %d commands queued after end", n)
			}
			return
		}
	}
}

func (s *session) start() error {
	out, err := audio.OpenOutput(s.ctrl.opts.Backend, s.ctrl.opts.DeviceID, s.buf)
	if err != nil {
		return err
	}

	norm, err := dsp.NewNormalizer(out.Config.SampleRate, out.Config.Channels)
	if err != nil {
		out.Close()
		return err
	}

	step := s.ctrl.opts.Step
	if step <= 0 {
		step = out.Config.Channels
	}
	rc, err := dsp.NewRateController(dsp.RateConfig{
		Nominal:    s.nominal,
		Margin:     dsp.DriftMargin(s.nominal, s.ctrl.opts.DriftMargin),
		Step:       step,
		Watermarks: s.ctrl.watermarks(s.kind, s.nominal),
	})
	if err != nil {
		out.Close()
		return err
	}

	for _, t := range s.ctrl.opts.Taps {
		if err := t.Open(out.Config.SampleRate, out.Config.Channels); err != nil {
			log.Warnf("Session: tap disabled: %v", err)
			continue
		}
		s.taps = append(s.taps, t)
	}

	s.output, s.norm, s.rc = out, norm, rc
	w := rc.Watermarks()
	log.Debugf("Session: rate %d..%d Hz step %d, watermarks high %d low %d",
		rc.Nominal(), rc.Max(), step, w.High, w.Low)
	return nil
}

func (s *session) release() {
	if err := s.output.Close(); err != nil {
		log.Errorf("Session: %v", err)
	}
	for _, t := range s.taps {
		if err := t.Close(); err != nil {
			log.Errorf("Session: closing tap: %v", err)
		}
	}
}

// flush hands the normalizer's held-back tail to the taps so recordings end
// with the last packet. The device is about to close and does not get it.
func (s *session) flush() {
	pcm := s.norm.Flush(int(s.rate.Load()))
	if len(pcm) == 0 {
		return
	}
	for _, t := range s.taps {
		t.Write(pcm)
	}
}

// process runs one packet through decode, rate control, normalization and
// the ring buffer. Failures drop the packet and never end the session.
func (s *session) process(frame codec.CompressedFrame) {
	df, err := s.dec.Decode(frame)
	if err != nil {
		s.decodeErrors.Add(1)
		s.decodeWarn.Warnf("Session: dropping packet %d: %v", frame.Timestamp, err)
		return
	}
	if df == nil {
		return
	}
	s.decoded.Add(1)

	rate := s.rc.Update(s.buf.Len())
	s.rate.Store(int64(rate))

	pcm, err := s.norm.Normalize(df, rate, s.vol)
	if err != nil {
		s.conversionErrors.Add(1)
		if errors.Is(err, dsp.ErrConversion) {
			s.convertWarn.Warnf("Session: %v, converter will be rebuilt", err)
		}
		return
	}

	if n := s.buf.Push(pcm); n < len(pcm) {
		s.dropped.Add(uint64(len(pcm) - n))
	}
	for _, t := range s.taps {
		t.Write(pcm)
	}
}
