// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"spectrum/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Core configuration constants that define the boundaries and defaults
// for the capture engine, the analyzer and the render loop.
const (
	// Audio
	DefaultChannels        = 1           // Mono audio
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultEncoding        = "f32"       // 32-bit float samples from PortAudio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 44100       // CD-quality audio

	// Window and analysis
	DefaultTargetSeconds = 0.1  // Rolling window length
	DefaultBins          = 256  // Spectrum resolution
	DefaultSliceFraction = 0.25 // First quarter of the transform

	// Render
	DefaultFPS = 30

	// Recording
	DefaultBitDepth = 16

	// Transport
	DefaultWSAddress        = ":8080"
	DefaultWSPath           = "/spectrum"
	DefaultUDPTargetAddress = "127.0.0.1:9090"

	// Hardware and processing limits
	MinDeviceID      = -1     // -1 represents system default device
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames  = 8192   // Maximum frames per buffer (power of 2)
	MaxTargetSeconds = 60     // Longest rolling window (seconds)
	MinFPS           = 1
	MaxFPS           = 120
)

var (
	ErrZeroChannels    = errors.New("audio.input_channels must be positive")
	ErrSampleRate      = fmt.Errorf("audio.sample_rate must be 0 (device default) or within [%d, %d]", MinSampleRate, MaxSampleRate)
	ErrFramesPerBuffer = fmt.Errorf("audio.frames_per_buffer must be a power of 2 no larger than %d", MaxBufferFrames)
	ErrEncoding        = errors.New("audio.encoding must be one of u16, i16, f32")
	ErrTargetSeconds   = fmt.Errorf("window.target_seconds must be within (0, %d]", MaxTargetSeconds)
	ErrBins            = errors.New("analysis.bins must be at least 2")
	ErrSliceFraction   = errors.New("analysis.slice_fraction must be in (0, 1]")
	ErrFPS             = fmt.Errorf("render.fps must be within [%d, %d]", MinFPS, MaxFPS)
	ErrBitDepth        = errors.New("recording.bit_depth must be 16, 24 or 32")
	ErrOutputFile      = errors.New("recording.output_file must be set when recording is enabled")
	ErrUDPTarget       = errors.New("transport.udp_target_address must be host:port when UDP is enabled")
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // A one-off command to execute instead of running the engine (e.g., "list").
	Audio     AudioConfig     `yaml:"audio"`             // Capture settings.
	Window    WindowConfig    `yaml:"window"`            // Rolling sample window.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Spectrum settings.
	Render    RenderConfig    `yaml:"render"`            // Render cadence and terminal UI.
	Recording RecordingConfig `yaml:"recording"`         // Mono capture recording.
	Transport TransportConfig `yaml:"transport"`         // Spectrum broadcast.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (0 uses the device default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	InputChannels   int     `yaml:"input_channels"`    // Number of input channels to capture.
	Encoding        string  `yaml:"encoding"`          // Sample encoding requested from the device ("f32", "i16").
	InputFile       string  `yaml:"input_file"`        // Replay a WAV/AIFF/MP3/OGG file instead of a device.
	LoopFile        bool    `yaml:"loop_file"`         // Restart the file at EOF.
	PickDevice      bool    `yaml:"pick_device"`       // Choose the device interactively before capture.
}

// WindowConfig sizes the rolling sample store.
type WindowConfig struct {
	TargetSeconds float64 `yaml:"target_seconds"` // Seconds of single-channel audio kept.
}

// AnalysisConfig holds spectrum settings.
type AnalysisConfig struct {
	Bins          int     `yaml:"bins"`           // Spectrum length.
	SliceFraction float64 `yaml:"slice_fraction"` // Fraction of the transform kept before resampling.
}

// RenderConfig holds render cadence settings.
type RenderConfig struct {
	FPS int  `yaml:"fps"` // Frames per second of the render loop.
	TUI bool `yaml:"tui"` // Draw the spectrum in the terminal.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record the mono capture stream.
	OutputFile string `yaml:"output_file"` // WAV file to write.
	BitDepth   int    `yaml:"bit_depth"`   // PCM bit depth (16, 24, 32).
}

// TransportConfig holds settings related to sending spectra over the network.
type TransportConfig struct {
	WSEnabled        bool   `yaml:"ws_enabled"`         // Serve spectra over WebSocket.
	WSAddress        string `yaml:"ws_address"`         // Listen address for the WebSocket server.
	WSPath           string `yaml:"ws_path"`            // HTTP path clients connect to.
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send spectra as UDP packets.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			Encoding:        DefaultEncoding,
		},
		Window: WindowConfig{
			TargetSeconds: DefaultTargetSeconds,
		},
		Analysis: AnalysisConfig{
			Bins:          DefaultBins,
			SliceFraction: DefaultSliceFraction,
		},
		Render: RenderConfig{
			FPS: DefaultFPS,
			TUI: true,
		},
		Recording: RecordingConfig{
			BitDepth: DefaultBitDepth,
		},
		Transport: TransportConfig{
			WSAddress:        DefaultWSAddress,
			WSPath:           DefaultWSPath,
			UDPTargetAddress: DefaultUDPTargetAddress,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. Environment overrides are applied last; the result is not validated so
// command line flags can still be layered on top (see Validate).
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Validate checks every bound the engine relies on. Zero channels is
// rejected here because capacity derivation divides by the channel count.
func (c *Config) Validate() error {
	a := c.Audio
	if a.InputChannels <= 0 {
		return ErrZeroChannels
	}
	if a.SampleRate != 0 && (a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate) {
		return fmt.Errorf("%w, got %g", ErrSampleRate, a.SampleRate)
	}
	if !bitint.IsPowerOfTwo(a.FramesPerBuffer) || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w, got %d (nearest %d)", ErrFramesPerBuffer, a.FramesPerBuffer, bitint.NextPowerOfTwo(a.FramesPerBuffer))
	}
	switch strings.ToLower(a.Encoding) {
	case "u16", "i16", "f32":
	default:
		return fmt.Errorf("%w, got %q", ErrEncoding, a.Encoding)
	}

	if !(c.Window.TargetSeconds > 0 && c.Window.TargetSeconds <= MaxTargetSeconds) {
		return fmt.Errorf("%w, got %g", ErrTargetSeconds, c.Window.TargetSeconds)
	}
	if c.Analysis.Bins < 2 {
		return fmt.Errorf("%w, got %d", ErrBins, c.Analysis.Bins)
	}
	if !(c.Analysis.SliceFraction > 0 && c.Analysis.SliceFraction <= 1) {
		return fmt.Errorf("%w, got %g", ErrSliceFraction, c.Analysis.SliceFraction)
	}
	if c.Render.FPS < MinFPS || c.Render.FPS > MaxFPS {
		return fmt.Errorf("%w, got %d", ErrFPS, c.Render.FPS)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w, got %d", ErrBitDepth, c.Recording.BitDepth)
		}
		if c.Recording.OutputFile == "" {
			return ErrOutputFile
		}
	}

	if c.Transport.UDPEnabled && !strings.Contains(c.Transport.UDPTargetAddress, ":") {
		return fmt.Errorf("%w, got %q", ErrUDPTarget, c.Transport.UDPTargetAddress)
	}

	return nil
}

// UsesDevice reports whether the command needs the PortAudio host: device
// listing and live capture do, file replay does not.
func (c *Config) UsesDevice() bool {
	return c.Command == "list" || c.Audio.InputFile == ""
}

// applyEnvOverrides layers ENV_* variables over file and default values.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG forces debug logging.
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil && bVal {
			c.LogLevel = "debug"
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		c.LogLevel = val
	}

	// ENV_WS_{...} and ENV_UDP_{...} are specific to the transport layer.

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WSEnabled = bVal
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok && val != "" {
		c.Transport.WSAddress = val
	}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok && val != "" {
		c.Transport.UDPTargetAddress = val
	}
}
