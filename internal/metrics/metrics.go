// SPDX-License-Identifier: MIT

// Package metrics exports the engine's Stats to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airsync/internal/log"
	"airsync/internal/session"
)

const namespace = "airsync"

// StatsSource is satisfied by *session.Controller.
type StatsSource interface {
	Stats() session.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(session.Stats) float64
}

// Collector reads a fresh snapshot on every scrape, so nothing on the audio
// path has to update Prometheus state.
type Collector struct {
	source  StatsSource
	state   *prometheus.Desc
	metrics []metric
}

func newDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
}

func NewCollector(source StatsSource) *Collector {
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	return &Collector{
		source: source,
		state: prometheus.NewDesc(prometheus.BuildFQName(namespace, "session", "state"),
			"Current session lifecycle state (1 for the active state).", []string{"state", "codec"}, nil),
		metrics: []metric{
			{newDesc("nominal_rate_hz", "Source sample rate negotiated for the session."), gauge,
				func(s session.Stats) float64 { return float64(s.NominalRate) }},
			{newDesc("resample_rate_hz", "Current drift-compensated resampling rate."), gauge,
				func(s session.Stats) float64 { return float64(s.Rate) }},
			{newDesc("max_rate_hz", "Upper bound of the resampling rate."), gauge,
				func(s session.Stats) float64 { return float64(s.MaxRate) }},
			{newDesc("buffer_occupancy_samples", "Samples waiting in the playback ring buffer."), gauge,
				func(s session.Stats) float64 { return float64(s.Occupancy) }},
			{newDesc("buffer_capacity_samples", "Playback ring buffer capacity."), gauge,
				func(s session.Stats) float64 { return float64(s.Capacity) }},
			{newDesc("command_queue_depth", "Commands waiting for the decode worker."), gauge,
				func(s session.Stats) float64 { return float64(s.QueueDepth) }},
			{newDesc("volume", "Linear output gain."), gauge,
				func(s session.Stats) float64 { return float64(s.Volume) }},
			{newDesc("packets_received_total", "Compressed packets accepted by the session."), counter,
				func(s session.Stats) float64 { return float64(s.PacketsReceived) }},
			{newDesc("frames_decoded_total", "Frames produced by the decoder."), counter,
				func(s session.Stats) float64 { return float64(s.FramesDecoded) }},
			{newDesc("decode_errors_total", "Packets dropped because they failed to decode."), counter,
				func(s session.Stats) float64 { return float64(s.DecodeErrors) }},
			{newDesc("conversion_errors_total", "Frames dropped by the format normalizer."), counter,
				func(s session.Stats) float64 { return float64(s.ConversionErrors) }},
			{newDesc("dropped_samples_total", "Samples dropped because the ring buffer was full."), counter,
				func(s session.Stats) float64 { return float64(s.DroppedSamples) }},
			{newDesc("sink_callbacks_total", "Device callbacks served."), counter,
				func(s session.Stats) float64 { return float64(s.Sink.Callbacks) }},
			{newDesc("sink_underruns_total", "Device callbacks padded with silence."), counter,
				func(s session.Stats) float64 { return float64(s.Sink.Underruns) }},
			{newDesc("sink_silent_samples_total", "Silence samples written by the device callback."), counter,
				func(s session.Stats) float64 { return float64(s.Sink.SilentSamples) }},
			{newDesc("sink_device_errors_total", "Callbacks reporting device underflow or overflow."), counter,
				func(s session.Stats) float64 { return float64(s.Sink.DeviceErrors) }},
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()
	for _, s := range []session.State{session.Idle, session.Starting, session.Running, session.Stopping} {
		v := 0.0
		if s == st.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, s.String(), st.Codec.String())
	}
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(st))
	}
}

// Metrics owns the registry served on /metrics.
type Metrics struct {
	registry *prometheus.Registry
}

// New registers the engine collector and the Go runtime collectors.
func New(source StatsSource) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(NewCollector(source)); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}
	return &Metrics{registry: registry}, nil
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      errorLog{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}

// errorLog sends promhttp's handler errors to the leveled logger.
type errorLog struct{}

func (errorLog) Println(v ...any) {
	log.Errorf("Metrics: %s", strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}
