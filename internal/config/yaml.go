// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"airsync/internal/codec"
	"airsync/internal/dsp"
	"airsync/internal/log"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "airsync.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides apply on top of the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not a known level", c.LogLevel)
	}

	a := c.Audio
	if a.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio.output_device %d must be >= %d", a.OutputDevice, MinDeviceID)
	}
	if a.FramesPerBuffer < MinBufferFrames || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d must be in [%d, %d]", a.FramesPerBuffer, MinBufferFrames, MaxBufferFrames)
	}
	if a.SampleRate != 0 && (a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate) {
		return fmt.Errorf("audio.sample_rate %d must be 0 or in [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.Channels < 0 {
		return fmt.Errorf("audio.channels %d must not be negative", a.Channels)
	}

	s := c.Sync
	if s.BufferCapacity < MinBufferCapacity {
		return fmt.Errorf("sync.buffer_capacity %d must be >= %d", s.BufferCapacity, MinBufferCapacity)
	}
	if s.DriftMargin < 0 || s.DriftMargin > MaxDriftMargin {
		return fmt.Errorf("sync.drift_margin %v must be in [0, %v]", s.DriftMargin, MaxDriftMargin)
	}
	if s.StepHz < 0 {
		return fmt.Errorf("sync.step_hz %d must not be negative", s.StepHz)
	}
	if s.InitialVolume < 0 {
		return fmt.Errorf("sync.initial_volume %v must not be negative", s.InitialVolume)
	}
	for name, w := range s.Watermarks {
		if _, err := codec.ParseKind(name); err != nil {
			return fmt.Errorf("sync.watermarks: %w", err)
		}
		if w.High <= 0 || w.Low < 0 || w.Low > w.High {
			return fmt.Errorf("sync.watermarks.%s: need 0 <= low <= high and high > 0, got %d/%d", name, w.Low, w.High)
		}
		if w.High >= s.BufferCapacity {
			return fmt.Errorf("sync.watermarks.%s: high %d must be below buffer_capacity %d", name, w.High, s.BufferCapacity)
		}
	}

	m := c.Monitor
	if m.UDPEnabled {
		if _, _, err := net.SplitHostPort(m.UDPTargetAddress); err != nil {
			return fmt.Errorf("monitor.udp_target_address %q: %w", m.UDPTargetAddress, err)
		}
	}
	if m.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if m.FFTSize < 0 {
		return fmt.Errorf("monitor.fft_size %d must not be negative", m.FFTSize)
	}

	if r := c.Recording; r.Enabled {
		if r.OutputDir == "" {
			return fmt.Errorf("recording.output_dir must be set when recording is enabled")
		}
		if r.BitDepth != 16 && r.BitDepth != 24 {
			return fmt.Errorf("recording.bit_depth %d must be 16 or 24", r.BitDepth)
		}
	}

	if f := c.Feed; f.Skew <= -0.5 || f.Skew >= 0.5 || f.Jitter < 0 || f.FramesPerPacket < 0 {
		return fmt.Errorf("feed: skew %v must be in (-0.5, 0.5), jitter and frames_per_packet non-negative", f.Skew)
	}
	return nil
}

// Level returns the effective log level; debug wins over log_level.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// WatermarkOverrides converts the per-codec thresholds. Call after Validate.
func (c *Config) WatermarkOverrides() map[codec.Kind]dsp.Watermarks {
	if len(c.Sync.Watermarks) == 0 {
		return nil
	}
	out := make(map[codec.Kind]dsp.Watermarks, len(c.Sync.Watermarks))
	for name, w := range c.Sync.Watermarks {
		if kind, err := codec.ParseKind(name); err == nil {
			out[kind] = dsp.Watermarks{High: w.High, Low: w.Low}
		}
	}
	return out
}

// applyEnvOverrides applies ENV_* variables. Unparseable values are ignored
// with a warning.
func (cfg *Config) applyEnvOverrides() {
	envString("ENV_LOG_LEVEL", &cfg.LogLevel)
	envBool("ENV_DEBUG", &cfg.Debug)

	envInt("ENV_OUTPUT_DEVICE", &cfg.Audio.OutputDevice)
	envInt("ENV_FRAMES_PER_BUFFER", &cfg.Audio.FramesPerBuffer)

	envInt("ENV_BUFFER_CAPACITY", &cfg.Sync.BufferCapacity)
	envFloat("ENV_DRIFT_MARGIN", &cfg.Sync.DriftMargin)

	envString("ENV_METRICS_ADDRESS", &cfg.Monitor.MetricsAddress)
	envString("ENV_WEBSOCKET_ADDRESS", &cfg.Monitor.WebSocketAddress)
	envBool("ENV_UDP_ENABLED", &cfg.Monitor.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &cfg.Monitor.UDPTargetAddress)
	envDuration("ENV_MONITOR_INTERVAL", &cfg.Monitor.Interval)

	envBool("ENV_RECORDING_ENABLED", &cfg.Recording.Enabled)
	envString("ENV_RECORDING_DIR", &cfg.Recording.OutputDir)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Debugf("configuration: %s=%q from env", key, val)
	}
}

func envBool(key string, dst *bool) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = b
		log.Debugf("configuration: %s=%v from env", key, b)
	}
}

func envInt(key string, dst *int) {
	if val, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = n
		log.Debugf("configuration: %s=%d from env", key, n)
	}
}

func envFloat(key string, dst *float64) {
	if val, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = f
		log.Debugf("configuration: %s=%v from env", key, f)
	}
}

func envDuration(key string, dst *time.Duration) {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = d
		log.Debugf("configuration: %s=%s from env", key, d)
	}
}
