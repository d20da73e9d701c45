// SPDX-License-Identifier: MIT

// Package transport carries engine telemetry to monitoring clients.
package transport

import (
	"time"

	"airsync/internal/session"
)

// Transport defines a generic interface for sending telemetry.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Report is one telemetry sample: the engine's Stats plus an optional
// spectrum of the normalized output.
type Report struct {
	Sequence  uint32 `json:"seq"`
	Timestamp int64  `json:"ts"` // Unix nanoseconds

	State       string  `json:"state"`
	Codec       string  `json:"codec"`
	NominalRate int     `json:"nominal_rate"`
	Rate        int     `json:"rate"`
	MaxRate     int     `json:"max_rate"`
	Occupancy   int     `json:"occupancy"`
	Capacity    int     `json:"capacity"`
	QueueDepth  int     `json:"queue_depth"`
	Volume      float32 `json:"volume"`

	FramesDecoded    uint64 `json:"frames_decoded"`
	DecodeErrors     uint64 `json:"decode_errors"`
	ConversionErrors uint64 `json:"conversion_errors"`
	DroppedSamples   uint64 `json:"dropped_samples"`
	Underruns        uint64 `json:"underruns"`

	Spectrum []float32 `json:"spectrum,omitempty"`
	Bands    []float32 `json:"bands,omitempty"` // levels for fft.DefaultBands
}

// NewReport fills a Report from a Stats snapshot.
func NewReport(seq uint32, now time.Time, st session.Stats) Report {
	return Report{
		Sequence:         seq,
		Timestamp:        now.UnixNano(),
		State:            st.State.String(),
		Codec:            st.Codec.String(),
		NominalRate:      st.NominalRate,
		Rate:             st.Rate,
		MaxRate:          st.MaxRate,
		Occupancy:        st.Occupancy,
		Capacity:         st.Capacity,
		QueueDepth:       st.QueueDepth,
		Volume:           st.Volume,
		FramesDecoded:    st.FramesDecoded,
		DecodeErrors:     st.DecodeErrors,
		ConversionErrors: st.ConversionErrors,
		DroppedSamples:   st.DroppedSamples,
		Underruns:        st.Sink.Underruns,
	}
}
