// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airsync/cmd"
	"airsync/internal/audio"
	"airsync/internal/config"
	"airsync/internal/feed"
	"airsync/internal/fft"
	"airsync/internal/log"
	"airsync/internal/metrics"
	"airsync/internal/record"
	"airsync/internal/session"
	"airsync/internal/transport"
	"airsync/internal/transport/udp"
	"airsync/pkg/build"
)

// drainTimeout bounds how long play waits for buffered audio after the
// source ends.
const drainTimeout = 5 * time.Second

// main runs in three phases:
//
// 1. Startup (cold path): build info, command line, PortAudio.
// 2. Playback (hot path): the session worker decodes and the device callback
// pulls from the ring buffer while the feed paces packets in.
// 3. Shutdown (cold path): on signal or end of file, stop the session and
// close the monitoring surfaces.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Command == "" {
		return
	}
	log.SetLevel(opts.Config.Level())

	switch opts.Command {
	case cmd.CommandVersion:
		fmt.Println(build.Get())
	case cmd.CommandList:
		err = withPortAudio(func() error { return audio.ListDevices(os.Stdout) })
	case cmd.CommandPlay:
		err = withPortAudio(func() error { return play(opts) })
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v", err)
	}
}

func withPortAudio(fn func() error) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			log.Errorf("%v", err)
		}
	}()
	return fn()
}

func play(opts *cmd.Options) error {
	cfg := opts.Config

	src, err := feed.Open(opts.File, feed.Options{
		FramesPerPacket: cfg.Feed.FramesPerPacket,
		Skew:            cfg.Feed.Skew,
		Jitter:          cfg.Feed.Jitter,
		Loop:            cfg.Feed.Loop,
	})
	if err != nil {
		return err
	}

	var (
		taps     []session.Tap
		analyzer *fft.Analyzer
	)
	if cfg.Monitor.FFTSize > 0 {
		if analyzer, err = fft.NewAnalyzer(cfg.Monitor.FFTSize); err != nil {
			return err
		}
		taps = append(taps, analyzer)
	}
	if cfg.Recording.Enabled {
		recorder, err := record.NewRecorder(cfg.Recording.OutputDir, cfg.Recording.BitDepth)
		if err != nil {
			return err
		}
		taps = append(taps, recorder)
	}

	backend := &audio.PortAudio{
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		LowLatency:      cfg.Audio.LowLatency,
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
	}
	ctrl, err := session.NewController(session.Options{
		Backend:        backend,
		DeviceID:       cfg.Audio.OutputDevice,
		BufferCapacity: cfg.Sync.BufferCapacity,
		DriftMargin:    cfg.Sync.DriftMargin,
		Step:           cfg.Sync.StepHz,
		Watermarks:     cfg.WatermarkOverrides(),
		InitialVolume:  opts.Volume,
		Taps:           taps,
	})
	if err != nil {
		return err
	}

	shutdownMetrics, err := serveMetrics(cfg.Monitor.MetricsAddress, ctrl)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	publisher, err := startPublisher(cfg.Monitor, ctrl, analyzer)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Errorf("Telemetry: %v", err)
			}
		}()
	}

	if err := ctrl.ConfigureAudio(src.Format()); err != nil {
		return err
	}
	defer ctrl.StopAudio()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Playing %s (%d packets every %v)", opts.File, src.Packets(), src.Interval())
	if err := src.Run(ctx, ctrl); err != nil {
		return err
	}
	waitDrained(ctx, ctrl)
	return nil
}

// waitDrained returns once the ring buffer is empty, the deadline passes or
// ctx is cancelled.
func waitDrained(ctx context.Context, ctrl *session.Controller) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(drainTimeout)
	for {
		st := ctrl.Stats()
		if st.State != session.Running || (st.QueueDepth == 0 && st.Occupancy == 0) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			log.Warnf("Playback: %d samples still buffered after %v", st.Occupancy, drainTimeout)
			return
		case <-ticker.C:
		}
	}
}

// serveMetrics starts the Prometheus endpoint when addr is set and returns
// its shutdown function.
func serveMetrics(addr string, ctrl *session.Controller) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	m, err := metrics.New(ctrl)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics: %v", err)
		}
	}()
	log.Infof("Metrics: serving http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("Metrics: %v", err)
		}
	}, nil
}

// startPublisher builds the telemetry transports enabled in cfg. It returns
// nil when none are.
func startPublisher(cfg config.MonitorConfig, ctrl *session.Controller, analyzer *fft.Analyzer) (*transport.Publisher, error) {
	var transports []transport.Transport
	closeAll := func() {
		for _, t := range transports {
			t.Close()
		}
	}

	if cfg.WebSocketAddress != "" {
		ws, err := transport.NewWebSocketTransport(cfg.WebSocketAddress)
		if err != nil {
			return nil, err
		}
		log.Infof("Telemetry: WebSocket on ws://%s/ws", ws.Addr())
		transports = append(transports, ws)
	}
	if cfg.UDPEnabled {
		sender, err := udp.NewSender(cfg.UDPTargetAddress)
		if err != nil {
			closeAll()
			return nil, err
		}
		log.Infof("Telemetry: UDP to %s", cfg.UDPTargetAddress)
		transports = append(transports, sender)
	}
	if cfg.LogStats {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if len(transports) == 0 {
		return nil, nil
	}

	var spectrum transport.SpectrumSource
	if analyzer != nil {
		spectrum = analyzer
	}
	p, err := transport.NewPublisher(cfg.Interval, ctrl, spectrum, transports...)
	if err != nil {
		closeAll()
		return nil, err
	}
	p.Start()
	return p, nil
}
