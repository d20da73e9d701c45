// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the playback engine.
const (
	DefaultLogLevel        = "info"
	DefaultDeviceID        = MinDeviceID // system default output
	DefaultFramesPerBuffer = 512
	DefaultBufferCapacity  = 65536 // samples, about 0.75 s of 44.1 kHz stereo
	DefaultDriftMargin     = 0.0137
	DefaultInitialVolume   = 0.5
	DefaultMonitorInterval = 250 * time.Millisecond
	DefaultFFTSize         = 1024
	DefaultRecordingDir    = "./recordings"
	DefaultBitDepth        = 16
	DefaultUDPTarget       = "127.0.0.1:9090"

	MinDeviceID       = -1 // -1 represents the system default device
	MinSampleRate     = 8000
	MaxSampleRate     = 192000
	MinBufferFrames   = 16
	MaxBufferFrames   = 8192
	MinBufferCapacity = 1024
	MaxDriftMargin    = 0.1
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio     AudioConfig     `yaml:"audio"`     // Output device settings.
	Sync      SyncConfig      `yaml:"sync"`      // Drift compensation and buffering.
	Monitor   MonitorConfig   `yaml:"monitor"`   // Metrics and telemetry.
	Recording RecordingConfig `yaml:"recording"` // WAV capture of the output.
	Feed      FeedConfig      `yaml:"feed"`      // Demo source pacing for the play command.
}

// AudioConfig selects and shapes the output stream.
type AudioConfig struct {
	OutputDevice    int  `yaml:"output_device"`     // PortAudio device index, -1 for default.
	FramesPerBuffer int  `yaml:"frames_per_buffer"` // Frames per device callback.
	LowLatency      bool `yaml:"low_latency"`       // Request the device's low latency.
	SampleRate      int  `yaml:"sample_rate"`       // 0 uses the device default.
	Channels        int  `yaml:"channels"`          // 0 uses up to two device channels.
}

// SyncConfig tunes the ring buffer and the rate controller.
type SyncConfig struct {
	BufferCapacity int                        `yaml:"buffer_capacity"` // Ring buffer size in samples.
	DriftMargin    float64                    `yaml:"drift_margin"`    // Fraction of nominal rate the controller may add; 0 disables.
	StepHz         int                        `yaml:"step_hz"`         // Hz per adjustment, 0 = device channel count.
	InitialVolume  float64                    `yaml:"initial_volume"`  // Linear gain at startup.
	Watermarks     map[string]WatermarkConfig `yaml:"watermarks"`      // Per-codec overrides keyed by codec name.
}

// WatermarkConfig holds occupancy thresholds in samples.
type WatermarkConfig struct {
	High int `yaml:"high"`
	Low  int `yaml:"low"`
}

// MonitorConfig controls the observability surfaces.
type MonitorConfig struct {
	MetricsAddress   string        `yaml:"metrics_address"`    // Prometheus listen address, empty disables.
	WebSocketAddress string        `yaml:"websocket_address"`  // Telemetry WebSocket listen address, empty disables.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary telemetry datagrams.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	LogStats         bool          `yaml:"log_stats"`          // Log a stats line every interval.
	Interval         time.Duration `yaml:"interval"`           // Telemetry publish interval.
	FFTSize          int           `yaml:"fft_size"`           // Spectrum window, 0 disables the analyzer.
}

// RecordingConfig holds settings for the WAV recorder tap.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16 or 24.
}

// FeedConfig shapes the simulated source clock used by the play command.
type FeedConfig struct {
	FramesPerPacket int           `yaml:"frames_per_packet"` // 0 = 352.
	Skew            float64       `yaml:"skew"`              // 0.001 runs the source 0.1% fast.
	Jitter          time.Duration `yaml:"jitter"`            // Maximum random delay per packet.
	Loop            bool          `yaml:"loop"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			OutputDevice:    DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Sync: SyncConfig{
			BufferCapacity: DefaultBufferCapacity,
			DriftMargin:    DefaultDriftMargin,
			InitialVolume:  DefaultInitialVolume,
		},
		Monitor: MonitorConfig{
			UDPTargetAddress: DefaultUDPTarget,
			Interval:         DefaultMonitorInterval,
			FFTSize:          DefaultFFTSize,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
	}
}
