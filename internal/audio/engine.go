// SPDX-License-Identifier: MIT
/*
Package audio captures interleaved audio from a PortAudio device or a replayed
file and feeds channel 0 into the shared rolling sample store.

Thread Safety:
  - Batches arrive on a single capture goroutine (or PortAudio's callback
    thread); the conversion scratch buffer is owned by that goroutine
  - The store serializes Append against the render loop's snapshots
  - Recording is toggled through an atomic pointer while capture runs
  - Counters are atomic so status displays can read them at any time
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"spectrum/internal/log"
	"spectrum/internal/samples"
)

// Engine connects a Source to a samples.Store.
type Engine struct {
	store  *samples.Store
	source Source
	format Format

	scratch []float32 // capture goroutine only

	recorder       atomic.Pointer[Recorder]
	batches        atomic.Uint64
	callbackErrors atomic.Uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	runErr    error
	closeOnce sync.Once
}

// NewEngine derives the store capacity from the source format and
// targetSeconds, and fixes it on the store. A store can only be attached to
// one engine.
func NewEngine(store *samples.Store, source Source, targetSeconds float64) (*Engine, error) {
	format := source.Format()
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture format: %w", err)
	}

	capacity, err := samples.Capacity(targetSeconds, format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to size sample window: %w", err)
	}
	if err := store.SetCapacity(capacity); err != nil {
		return nil, fmt.Errorf("failed to size sample window: %w", err)
	}

	log.Debugf("Engine: %s, window %d samples (%.3fs target)", format, capacity, targetSeconds)

	return &Engine{
		store:  store,
		source: source,
		format: format,
	}, nil
}

func (e *Engine) Format() Format { return e.format }

// Start runs the source on its own goroutine until ctx is cancelled, the
// source ends, or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done != nil {
		return ErrEngineStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		err := e.source.Run(ctx, e)
		if err != nil {
			log.Errorf("Engine: capture stopped: %v", err)
		} else {
			log.Debugf("Engine: capture finished")
		}
		e.mu.Lock()
		e.runErr = err
		e.mu.Unlock()
	}()

	log.Infof("Engine: capture started (%s)", e.format)
	return nil
}

// Done is closed when capture stops. It is nil before Start.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Wait blocks until capture stops and returns the source's error.
func (e *Engine) Wait() error {
	done := e.Done()
	if done == nil {
		return nil
	}
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// HandleBatch converts the batch to canonical floats and appends channel 0
// to the store. It runs on the capture thread and does not allocate once
// the scratch buffer has grown to the callback size.
func (e *Engine) HandleBatch(b Batch) {
	e.batches.Add(1)
	e.scratch = b.AppendFloat32(e.scratch[:0])

	if err := e.store.Append(e.scratch, b.Channels); err != nil {
		e.HandleError(err)
		return
	}

	if rec := e.recorder.Load(); rec != nil {
		if err := rec.Write(e.scratch, b.Channels); err != nil && !errors.Is(err, ErrRecorderClosed) {
			e.HandleError(err)
		}
	}
}

// HandleError records a non-fatal capture problem. It runs on the capture
// thread, so only the first error and every hundredth after it are logged.
func (e *Engine) HandleError(err error) {
	n := e.callbackErrors.Add(1)
	if n == 1 || n%100 == 0 {
		log.Warnf("Engine: capture error #%d: %v", n, err)
	}
}

// Batches returns how many callback buffers have been handled.
func (e *Engine) Batches() uint64 { return e.batches.Load() }

// CallbackErrors returns how many non-fatal capture errors were reported.
func (e *Engine) CallbackErrors() uint64 { return e.callbackErrors.Load() }

// StartRecording begins writing the mono capture stream to path.
func (e *Engine) StartRecording(path string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}

	rec, err := NewRecorder(path, int(math.Round(e.format.SampleRate)), bitDepth)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.Close()
		return ErrAlreadyRecording
	}

	log.Infof("Engine: recording to %s (%d-bit)", path, bitDepth)
	return nil
}

// StopRecording finalizes the current recording, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	if err := rec.Close(); err != nil {
		return err
	}

	log.Infof("Engine: recording stopped, %d samples written to %s", rec.Frames(), rec.Path())
	return nil
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool { return e.recorder.Load() != nil }

// Close stops capture, finalizes any recording and releases the source.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		cancel := e.cancel
		e.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		runErr := e.Wait()

		err = errors.Join(e.StopRecording(), e.source.Close())
		if runErr != nil {
			log.Debugf("Engine: source returned %v", runErr)
		}
	})
	return err
}
