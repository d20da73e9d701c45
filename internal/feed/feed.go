// SPDX-License-Identifier: MIT

// Package feed is a stand-in for the network source: it reads a WAV file and
// submits it as raw PCM packets paced by a clock that runs slightly off the
// nominal rate and jitters, the way a remote sender's clock does.
package feed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/go-audio/wav"

	"airsync/internal/codec"
	"airsync/internal/log"
)

// Submitter is satisfied by *session.Controller.
type Submitter interface {
	SubmitPacket(payload []byte, timestamp uint32) error
}

// Options controls packetisation and pacing.
type Options struct {
	FramesPerPacket int           // 0 = 352, the ALAC frame size
	Skew            float64       // source clock error, 0.001 runs 0.1% fast
	Jitter          time.Duration // maximum random delay added per packet
	Loop            bool          // restart at end of file until cancelled
}

// Source holds a decoded WAV file in memory.
type Source struct {
	opts       Options
	data       []int // interleaved
	sampleRate int
	channels   int
	bitDepth   int
}

// Open reads the whole file. Only 16- and 24-bit PCM files are accepted.
func Open(path string, opts Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("feed: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("feed: reading %s: %w", path, err)
	}

	s := &Source{
		opts:       opts,
		data:       buf.Data,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
	}
	if s.bitDepth != 16 && s.bitDepth != 24 {
		return nil, fmt.Errorf("feed: %s is %d-bit, only 16 and 24 are supported", path, s.bitDepth)
	}
	if s.channels <= 0 || s.sampleRate <= 0 {
		return nil, fmt.Errorf("feed: %s has %d channels at %d Hz", path, s.channels, s.sampleRate)
	}
	if s.opts.FramesPerPacket <= 0 {
		s.opts.FramesPerPacket = codec.KindALAC.SamplesPerFrame()
	}

	log.Infof("Feed: %s, %d Hz, %d ch, %d bit, %.1fs", path, s.sampleRate, s.channels, s.bitDepth,
		float64(len(s.data)/s.channels)/float64(s.sampleRate))
	return s, nil
}

// Format returns the values to pass to ConfigureAudio for this source.
func (s *Source) Format() (kind codec.Kind, blob []byte, sampleRate, channels int) {
	return codec.KindPCM, codec.PCMConfig(s.bitDepth, false), s.sampleRate, s.channels
}

// Packets returns the number of packets in one pass over the file.
func (s *Source) Packets() int {
	stride := s.opts.FramesPerPacket * s.channels
	return (len(s.data) + stride - 1) / stride
}

// Packet appends packet i, big-endian PCM, to dst.
func (s *Source) Packet(i int, dst []byte) []byte {
	stride := s.opts.FramesPerPacket * s.channels
	start := min(i*stride, len(s.data))
	end := min(start+stride, len(s.data))
	for _, v := range s.data[start:end] {
		if s.bitDepth == 24 {
			dst = append(dst, byte(v>>16), byte(v>>8), byte(v))
		} else {
			dst = binary.BigEndian.AppendUint16(dst, uint16(int16(v)))
		}
	}
	return dst
}

// Interval returns the pacing between packets including skew.
func (s *Source) Interval() time.Duration {
	nominal := float64(s.opts.FramesPerPacket) / float64(s.sampleRate) * float64(time.Second)
	return time.Duration(nominal / (1 + s.opts.Skew))
}

// Run submits packets until the file ends or ctx is cancelled. Timestamps
// count frames, as RTP does. Submission errors other than cancellation are
// returned.
func (s *Source) Run(ctx context.Context, dst Submitter) error {
	interval := s.Interval()
	timer := time.NewTimer(0)
	defer timer.Stop()

	var (
		payload []byte
		ts      uint32
		sent    int
	)
	start := time.Now()
	for {
		for i := range s.Packets() {
			// Deadlines come from the start time so jitter does not accumulate.
			due := start.Add(time.Duration(sent) * interval)
			if s.opts.Jitter > 0 {
				due = due.Add(rand.N(s.opts.Jitter))
			}
			timer.Reset(time.Until(due))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}

			payload = s.Packet(i, payload[:0])
			if err := dst.SubmitPacket(payload, ts); err != nil {
				return fmt.Errorf("feed: packet %d: %w", sent, err)
			}
			ts += uint32(s.opts.FramesPerPacket)
			sent++
		}
		if !s.opts.Loop {
			log.Infof("Feed: end of file after %d packets", sent)
			return nil
		}
	}
}
