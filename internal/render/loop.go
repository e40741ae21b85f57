// SPDX-License-Identifier: MIT

// Package render drives the snapshot, analyze and fan-out cycle at a fixed
// frame rate, independent of the capture callback rate.
package render

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spectrum/internal/analysis"
	applog "spectrum/internal/log"
	"spectrum/internal/samples"
	"spectrum/internal/transport"
)

var ErrInvalidFPS = errors.New("render: fps must be positive")

// Loop periodically snapshots the sample store, analyzes the window into a
// reused spectrum and hands it to every sink. It runs in a separate
// goroutine managed by Start and Stop. Ticks that arrive while a frame is
// still being produced are coalesced by the ticker.
type Loop struct {
	store    *samples.Store
	analyzer *analysis.Analyzer
	sinks    []transport.Sink
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers frames.
	doneChan chan struct{}  // Channel used to signal the loop goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the loop goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	frameMu  sync.Mutex // Serializes RenderFrame with the loop goroutine.
	window   []float32  // Snapshot buffer, grows to the store capacity once.
	spectrum analysis.Spectrum

	frames     atomic.Uint64
	skipped    atomic.Uint64
	sinkErrors atomic.Uint64
}

// NewLoop creates a Loop rendering fps frames per second into sinks.
func NewLoop(store *samples.Store, analyzer *analysis.Analyzer, fps int, sinks ...transport.Sink) (*Loop, error) {
	if store == nil || analyzer == nil {
		return nil, errors.New("render: store and analyzer are required")
	}
	if fps <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidFPS, fps)
	}

	interval := time.Second / time.Duration(fps)
	applog.Infof("Render: Initializing (Interval: %s, Bins: %d, Sinks: %d)", interval, analyzer.Bins(), len(sinks))

	return &Loop{
		store:    store,
		analyzer: analyzer,
		sinks:    sinks,
		interval: interval,
		spectrum: analyzer.NewSpectrum(),
	}, nil
}

// Interval returns the time between frames.
func (l *Loop) Interval() time.Duration { return l.interval }

// Start begins rendering. It is safe to call Start multiple times;
// subsequent calls are no-ops while running.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.ticker != nil {
		l.mu.Unlock()
		applog.Warnf("Render: Start called but already running.")
		return
	}

	l.ticker = time.NewTicker(l.interval)
	l.doneChan = make(chan struct{})
	l.stopOnce = sync.Once{}

	ticker := l.ticker
	doneChan := l.doneChan
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		applog.Debugf("Render: Loop goroutine started (Interval: %s)", l.interval)
		for {
			select {
			case <-ticker.C:
				l.RenderFrame()
			case <-doneChan:
				applog.Debugf("Render: Loop goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the loop goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.ticker == nil {
		l.mu.Unlock()
		return
	}

	l.stopOnce.Do(func() {
		close(l.doneChan)
		l.ticker.Stop()
		l.ticker = nil
	})
	l.mu.Unlock()

	l.wg.Wait()
	applog.Infof("Render: Stopped after %d frames (%d skipped, %d sink errors)",
		l.frames.Load(), l.skipped.Load(), l.sinkErrors.Load())
}

// RenderFrame performs one snapshot, analyze and send cycle. It reports
// false when the store was still empty and nothing was sent.
func (l *Loop) RenderFrame() bool {
	l.frameMu.Lock()
	defer l.frameMu.Unlock()

	// The store lock is held only for this copy.
	l.window = l.store.SnapshotInto(l.window)
	if len(l.window) == 0 {
		l.skipped.Add(1)
		return false
	}

	if err := l.analyzer.Analyze(l.spectrum, l.window); err != nil {
		applog.Errorf("Render: Analyze failed: %v", err)
		l.skipped.Add(1)
		return false
	}

	for _, sink := range l.sinks {
		if err := sink.Send(l.spectrum); err != nil {
			n := l.sinkErrors.Add(1)
			if n == 1 || n%100 == 0 {
				applog.Warnf("Render: Sink %T error (%d total): %v", sink, n, err)
			}
		}
	}
	l.frames.Add(1)
	return true
}

// Frames returns the number of spectra delivered to the sinks.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// Skipped returns the number of ticks that produced no spectrum.
func (l *Loop) Skipped() uint64 { return l.skipped.Load() }

// SinkErrors returns the number of failed Send calls.
func (l *Loop) SinkErrors() uint64 { return l.sinkErrors.Load() }

// Close stops the loop and closes every sink.
func (l *Loop) Close() error {
	l.Stop()

	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %T: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}
