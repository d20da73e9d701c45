// SPDX-License-Identifier: MIT
package session

import (
	"math"

	"airsync/internal/audio"
	"airsync/internal/codec"
)

// Stats is a point-in-time view of the engine. After a session stops the
// controller keeps its final figures until the next one starts.
type Stats struct {
	State          State
	Codec          codec.Kind
	NominalRate    int
	Rate           int
	MaxRate        int
	DeviceRate     int
	DeviceChannels int
	Occupancy      int
	Capacity       int
	QueueDepth     int
	Volume         float32

	PacketsReceived  uint64
	FramesDecoded    uint64
	DecodeErrors     uint64
	ConversionErrors uint64
	DroppedSamples   uint64

	Sink audio.SinkStats
}

// Stats returns the current session's figures, or the last session's when idle.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st Stats
	if c.sess != nil {
		st = c.sess.snapshot()
	} else {
		st = c.last
	}
	st.State = c.State()
	if st.State == Idle {
		st.Volume = c.loadVolume()
	}
	return st
}

func (s *session) snapshot() Stats {
	st := Stats{
		Codec:            s.kind,
		NominalRate:      s.nominal,
		Rate:             int(s.rate.Load()),
		Occupancy:        s.buf.Len(),
		Capacity:         s.buf.Cap(),
		QueueDepth:       s.queue.len(),
		Volume:           math.Float32frombits(s.volume.Load()),
		PacketsReceived:  s.received.Load(),
		FramesDecoded:    s.decoded.Load(),
		DecodeErrors:     s.decodeErrors.Load(),
		ConversionErrors: s.conversionErrors.Load(),
		DroppedSamples:   s.dropped.Load(),
	}
	if s.output != nil {
		st.DeviceRate = s.output.Config.SampleRate
		st.DeviceChannels = s.output.Config.Channels
		st.Sink = s.output.Sink.Stats()
	}
	if s.rc != nil {
		st.MaxRate = s.rc.Max()
	}
	return st
}
