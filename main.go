// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"spectrum/cmd"
	"spectrum/internal/analysis"
	"spectrum/internal/audio"
	"spectrum/internal/config"
	"spectrum/internal/log"
	"spectrum/internal/render"
	"spectrum/internal/samples"
	"spectrum/internal/transport"
	"spectrum/internal/transport/udp"
	"spectrum/internal/tui"
	"spectrum/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
)

// logFile receives log output while the terminal UI owns the screen.
const logFile = "spectrum.log"

// main is the entry point for the spectrum analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase:
//   - Capture into the rolling sample store
//   - Render spectra at a fixed rate and fan them out to the sinks
//   - Draw the terminal UI, or wait for a signal
//
// 3. Shutdown Phase:
//   - Stop the render loop and close the sinks
//   - Stop capture and finalize any recording
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v, using defaults", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg == nil {
		return // --help or --version
	}

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	} else {
		log.Warnf("Config: unknown log level %q, using %s", cfg.LogLevel, log.GetLevel())
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	// File replay runs without PortAudio.
	if cfg.UsesDevice() {
		if err := audio.Initialize(); err != nil {
			log.Fatalf("%v", err)
		}
	}

	err = execute(cfg)
	if cfg.UsesDevice() {
		if termErr := audio.Terminate(); termErr != nil {
			log.Warnf("%v", termErr)
		}
	}
	if err != nil && !errors.Is(err, tui.ErrNoSelection) {
		log.Fatalf("%v", err)
	}
}

func execute(cfg *config.Config) error {
	if cfg.Command == "list" {
		return audio.ListDevices(os.Stdout)
	}

	if cfg.Audio.PickDevice && cfg.Audio.InputFile == "" {
		sel, err := tui.PickDevice(audio.HostDevices)
		if err != nil {
			return err
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		log.Infof("Picked device [%d] %s at %.0f Hz", sel.DeviceID, sel.Name, sel.SampleRate)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg)
}

// run wires source, engine, store, analyzer and sinks together and blocks
// until ctx is cancelled, capture ends or the user quits the terminal UI.
func run(ctx context.Context, cfg *config.Config) error {
	source, title, err := newSource(cfg)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE ====================

	store := samples.NewStore()
	engine, err := audio.NewEngine(store, source, cfg.Window.TargetSeconds)
	if err != nil {
		source.Close()
		return err
	}

	analyzer, err := analysis.New(cfg.Analysis.Bins, cfg.Analysis.SliceFraction)
	if err != nil {
		engine.Close()
		return err
	}

	sinks, err := newSinks(cfg)
	if err != nil {
		engine.Close()
		return err
	}

	var (
		program *tea.Program
		loop    *render.Loop
	)
	if cfg.Render.TUI {
		status := func() string {
			s := fmt.Sprintf("%d skipped • %d capture errors", loop.Skipped(), engine.CallbackErrors())
			if engine.Recording() {
				s += " • REC"
			}
			return s
		}
		program = tui.NewProgram(ctx, tui.NewSpectrumModel(title, status))
		sinks = append(sinks, tui.NewSink(program))
	}

	loop, err = render.NewLoop(store, analyzer, cfg.Render.FPS, sinks...)
	if err != nil {
		for _, s := range sinks {
			s.Close()
		}
		engine.Close()
		return err
	}

	if err := engine.Start(ctx); err != nil {
		loop.Close()
		engine.Close()
		return err
	}
	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.OutputFile, cfg.Recording.BitDepth); err != nil {
			log.Errorf("Engine: %v", err)
		}
	}
	loop.Start()

	var runErr error
	if program != nil {
		closeLog := redirectLog()
		go func() {
			<-engine.Done()
			program.Quit()
		}()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			runErr = err
		}
		closeLog()
	} else {
		log.Infof("Running, press Ctrl+C to stop")
		select {
		case <-ctx.Done():
		case <-engine.Done():
		}
	}

	// ==================== SHUTDOWN PHASE ====================

	return errors.Join(runErr, loop.Close(), engine.Close(), engine.Wait())
}

// newSource opens the replay file or the capture device and returns it with
// a short description for the terminal title.
func newSource(cfg *config.Config) (audio.Source, string, error) {
	a := cfg.Audio
	if a.InputFile != "" {
		src, err := audio.NewFileSource(a.InputFile, a.FramesPerBuffer, a.LoopFile)
		if err != nil {
			return nil, "", err
		}
		return src, fmt.Sprintf("%s • %s", a.InputFile, src.Format()), nil
	}

	encoding, err := audio.ParseEncoding(a.Encoding)
	if err != nil {
		return nil, "", err
	}
	src, err := audio.NewStreamSource(audio.StreamConfig{
		DeviceID:        a.InputDevice,
		Channels:        a.InputChannels,
		SampleRate:      a.SampleRate,
		FramesPerBuffer: a.FramesPerBuffer,
		LowLatency:      a.LowLatency,
		Encoding:        encoding,
	})
	if err != nil {
		return nil, "", err
	}
	return src, fmt.Sprintf("%s • %s", src.DeviceName(), src.Format()), nil
}

// newSinks builds the network and logging sinks the configuration enables.
func newSinks(cfg *config.Config) ([]transport.Sink, error) {
	var sinks []transport.Sink
	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}

	t := cfg.Transport
	if t.WSEnabled {
		ws := transport.NewWebSocketSink(t.WSPath)
		if _, err := ws.Serve(t.WSAddress); err != nil {
			ws.Close()
			return nil, err
		}
		sinks = append(sinks, ws)
	}

	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			closeAll()
			return nil, err
		}
		sink, err := udp.NewSink(sender)
		if err != nil {
			sender.Close()
			closeAll()
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	// One summary line per second of frames.
	sinks = append(sinks, transport.NewLoggingSink(cfg.Render.FPS))
	return sinks, nil
}

// redirectLog keeps log lines from tearing the terminal UI. Debug sessions
// log to a file; otherwise output is discarded until the UI exits.
func redirectLog() (restore func()) {
	if log.GetLevel() > log.LevelDebug {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warnf("Cannot open %s: %v", logFile, err)
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}
}
