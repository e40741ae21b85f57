// SPDX-License-Identifier: MIT
package cmd

import (
	"time"

	"spectrum/internal/config"
	"spectrum/pkg/build"

	"github.com/spf13/cobra"
)

// flagValues receives every command line flag. Only flags the user set are
// copied onto the loaded configuration.
type flagValues struct {
	configPath      string
	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	encoding        string
	input           string
	loop            bool
	pick            bool
	window          float64
	bins            int
	slice           float64
	fps             int
	noTUI           bool
	record          bool
	output          string
	bitDepth        int
	ws              bool
	wsAddress       string
	udp             bool
	udpTarget       string
	verbose         bool
}

// ParseArgs parses args (without the program name), loads the configuration
// file named by --config (or the default search path) and layers the
// explicitly set flags on top. It returns a nil config when cobra handled
// the invocation itself, as for --help and --version.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.Get()
	defaults := config.Default()

	var (
		flags flagValues
		cfg   *config.Config
	)

	load := func(cmd *cobra.Command, command string) error {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		flags.apply(loaded, cmd.Flags().Changed)
		loaded.Command = command
		cfg = loaded
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Live audio spectrum analyzer",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "")
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "list")
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", defaults.Audio.InputDevice,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", defaults.Audio.InputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", defaults.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz); 0 uses the device default")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", defaults.Audio.FramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", defaults.Audio.LowLatency,
		"Use low latency mode for real-time processing")
	pf.StringVarP(&flags.encoding, "encoding", "e", defaults.Audio.Encoding,
		"Sample encoding requested from the device (i16, f32)")
	pf.BoolVarP(&flags.pick, "pick", "p", defaults.Audio.PickDevice,
		"Choose the input device and sample rate interactively")

	// File replay
	pf.StringVarP(&flags.input, "input", "i", defaults.Audio.InputFile,
		"Replay a WAV, AIFF, MP3 or Ogg Vorbis file instead of capturing")
	pf.BoolVar(&flags.loop, "loop", defaults.Audio.LoopFile,
		"Restart the input file when it ends")

	// Analysis and rendering
	pf.Float64Var(&flags.window, "window", defaults.Window.TargetSeconds,
		"Seconds of audio kept in the rolling window")
	pf.IntVar(&flags.bins, "bins", defaults.Analysis.Bins,
		"Number of spectrum bins")
	pf.Float64Var(&flags.slice, "slice", defaults.Analysis.SliceFraction,
		"Fraction of the transform kept before resampling, in (0, 1]")
	pf.IntVar(&flags.fps, "fps", defaults.Render.FPS,
		"Spectrum frames per second")
	pf.BoolVar(&flags.noTUI, "no-tui", !defaults.Render.TUI,
		"Do not draw the spectrum in the terminal")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", defaults.Recording.Enabled,
		"Record the captured mono stream")
	pf.StringVarP(&flags.output, "output", "o", defaults.Recording.OutputFile,
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")
	pf.IntVar(&flags.bitDepth, "bit-depth", defaults.Recording.BitDepth,
		"Recording bit depth (16, 24, 32)")

	// Transport Configuration
	pf.BoolVar(&flags.ws, "ws", defaults.Transport.WSEnabled,
		"Serve spectra over WebSocket")
	pf.StringVar(&flags.wsAddress, "ws-address", defaults.Transport.WSAddress,
		"WebSocket listen address")
	pf.BoolVar(&flags.udp, "udp", defaults.Transport.UDPEnabled,
		"Send spectra as UDP packets")
	pf.StringVar(&flags.udpTarget, "udp-target", defaults.Transport.UDPTargetAddress,
		"UDP target host:port")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies every flag reported by changed onto cfg.
func (f *flagValues) apply(cfg *config.Config, changed func(name string) bool) {
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("encoding") {
		cfg.Audio.Encoding = f.encoding
	}
	if changed("pick") {
		cfg.Audio.PickDevice = f.pick
	}
	if changed("input") {
		cfg.Audio.InputFile = f.input
	}
	if changed("loop") {
		cfg.Audio.LoopFile = f.loop
	}
	if changed("window") {
		cfg.Window.TargetSeconds = f.window
	}
	if changed("bins") {
		cfg.Analysis.Bins = f.bins
	}
	if changed("slice") {
		cfg.Analysis.SliceFraction = f.slice
	}
	if changed("fps") {
		cfg.Render.FPS = f.fps
	}
	if changed("no-tui") {
		cfg.Render.TUI = !f.noTUI
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
	}
	if changed("bit-depth") {
		cfg.Recording.BitDepth = f.bitDepth
	}
	if changed("ws") {
		cfg.Transport.WSEnabled = f.ws
	}
	if changed("ws-address") {
		cfg.Transport.WSAddress = f.wsAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = f.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDPTargetAddress = f.udpTarget
	}
	if changed("verbose") && f.verbose {
		cfg.LogLevel = "debug"
	}

	// Defaults
	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
}
