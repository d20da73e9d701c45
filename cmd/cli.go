// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"airsync/internal/config"
	"airsync/internal/session"
	"airsync/pkg/build"
)

// Commands understood by main.
const (
	CommandPlay    = "play"
	CommandList    = "list"
	CommandVersion = "version"
)

// Options is the parsed command line: which command to run, on what, and
// the configuration after file, environment and flag overrides.
type Options struct {
	Command string
	File    string
	Config  *config.Config
	Volume  float32
}

// flagValues collects flag values before they are merged into the config.
type flagValues struct {
	configPath string
	verbose    bool

	device          int
	framesPerBuffer int
	lowLatency      bool
	sampleRate      int
	channels        int

	driftMargin float64
	stepHz      int
	volume      float64
	volumeDB    float64

	metricsAddr string
	wsAddr      string
	udpTarget   string
	logStats    bool

	record    bool
	recordDir string

	skew         float64
	jitter       time.Duration
	loop         bool
	packetFrames int
}

// ParseArgs runs the cobra command tree over args and returns what main
// should do. Help and usage output go to out.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	info := build.Get()
	var (
		fv   flagValues
		opts Options
	)

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			if err := fv.apply(cmd.Flags(), cfg, &opts); err != nil {
				return err
			}
			opts.Config = cfg
			return cfg.Validate()
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	playCmd := &cobra.Command{
		Use:   "play <file.wav>",
		Short: "Play a WAV file through the engine on a simulated drifting source clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandPlay
			opts.File = args[0]
			return nil
		},
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio output devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandList
			return nil
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil // no config needed
		},
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandVersion
		},
	}
	rootCmd.AddCommand(playCmd, listCmd, versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "Path to a YAML configuration file (default: ./config.yaml if present)")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "Show verbose output")

	// Output device
	pf.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Output device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per device callback (affects latency)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", false, "Request the device's low latency")
	pf.IntVarP(&fv.sampleRate, "sample-rate", "s", 0, "Device sample rate in Hz (0 = device default)")
	pf.IntVarP(&fv.channels, "channels", "c", 0, "Device channels (0 = up to two)")

	// Sync
	pf.Float64Var(&fv.driftMargin, "drift-margin", config.DefaultDriftMargin,
		"Fraction of the nominal rate the controller may speed up by")
	pf.IntVar(&fv.stepHz, "step", 0, "Rate adjustment per frame in Hz (0 = device channel count)")
	pf.Float64Var(&fv.volume, "volume", config.DefaultInitialVolume, "Initial linear volume")
	pf.Float64Var(&fv.volumeDB, "volume-db", 0, "Initial volume in AirPlay dB (-30..0, -144 mutes); overrides --volume")

	// Monitoring
	pf.StringVar(&fv.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	pf.StringVar(&fv.wsAddr, "ws", "", "Serve telemetry over WebSocket on this address (e.g. :8080)")
	pf.StringVar(&fv.udpTarget, "udp", "", "Send binary telemetry datagrams to host:port")
	pf.BoolVar(&fv.logStats, "log-stats", false, "Log a stats line every monitor interval")

	// Recording
	pf.BoolVarP(&fv.record, "record", "r", false, "Record the output to WAV")
	pf.StringVarP(&fv.recordDir, "output", "o", config.DefaultRecordingDir, "Recording directory")

	// Simulated source
	playCmd.Flags().Float64Var(&fv.skew, "skew", 0, "Source clock error, 0.001 runs the source 0.1% fast")
	playCmd.Flags().DurationVar(&fv.jitter, "jitter", 0, "Maximum random delay per packet")
	playCmd.Flags().BoolVar(&fv.loop, "loop", false, "Repeat the file until interrupted")
	playCmd.Flags().IntVar(&fv.packetFrames, "packet-frames", 0, "Frames per packet (0 = 352)")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if opts.Command == "" {
		// Root without a subcommand, or --help/--version.
		return &Options{}, nil
	}
	if opts.Config == nil {
		cfg := config.Defaults()
		opts.Config = &cfg
	}
	return &opts, nil
}

// apply merges explicitly set flags into cfg.
func (fv *flagValues) apply(flags *pflag.FlagSet, cfg *config.Config, opts *Options) error {
	changed := flags.Changed

	if fv.verbose {
		cfg.Debug = true
	}
	if changed("device") {
		cfg.Audio.OutputDevice = fv.device
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if changed("channels") {
		cfg.Audio.Channels = fv.channels
	}
	if changed("drift-margin") {
		cfg.Sync.DriftMargin = fv.driftMargin
	}
	if changed("step") {
		cfg.Sync.StepHz = fv.stepHz
	}
	if changed("volume") {
		cfg.Sync.InitialVolume = fv.volume
	}
	if changed("metrics") {
		cfg.Monitor.MetricsAddress = fv.metricsAddr
	}
	if changed("ws") {
		cfg.Monitor.WebSocketAddress = fv.wsAddr
	}
	if changed("udp") {
		cfg.Monitor.UDPEnabled = fv.udpTarget != ""
		cfg.Monitor.UDPTargetAddress = fv.udpTarget
	}
	if changed("log-stats") {
		cfg.Monitor.LogStats = fv.logStats
	}
	if changed("record") {
		cfg.Recording.Enabled = fv.record
	}
	if changed("output") {
		cfg.Recording.OutputDir = fv.recordDir
	}
	if changed("skew") {
		cfg.Feed.Skew = fv.skew
	}
	if changed("jitter") {
		cfg.Feed.Jitter = fv.jitter
	}
	if changed("loop") {
		cfg.Feed.Loop = fv.loop
	}
	if changed("packet-frames") {
		cfg.Feed.FramesPerPacket = fv.packetFrames
	}

	opts.Volume = float32(cfg.Sync.InitialVolume)
	if changed("volume-db") {
		if fv.volumeDB > 0 {
			return fmt.Errorf("--volume-db %v must be <= 0", fv.volumeDB)
		}
		opts.Volume = session.VolumeFromDecibels(fv.volumeDB)
	}
	return nil
}
