// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"sync"
)

// recordingHandler keeps a copy of everything a source delivers.
type recordingHandler struct {
	mu      sync.Mutex
	samples []float32
	batches int
	errs    []error
}

func (h *recordingHandler) HandleBatch(b Batch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches++
	h.samples = b.AppendFloat32(h.samples)
}

func (h *recordingHandler) HandleError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHandler) snapshot() ([]float32, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float32(nil), h.samples...), h.batches
}

// fakeSource delivers a fixed list of batches, then either returns runErr
// or, when hold is set, blocks until cancelled.
type fakeSource struct {
	format  Format
	batches []Batch
	errs    []error
	hold    bool
	runErr  error

	mu     sync.Mutex
	closed int
}

func (s *fakeSource) Format() Format { return s.format }

func (s *fakeSource) Run(ctx context.Context, h Handler) error {
	for _, err := range s.errs {
		h.HandleError(err)
	}
	for _, b := range s.batches {
		h.HandleBatch(b)
	}
	if s.hold {
		<-ctx.Done()
		return nil
	}
	return s.runErr
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}
