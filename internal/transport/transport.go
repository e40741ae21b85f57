// SPDX-License-Identifier: MIT

// Package transport delivers rendered spectra to their consumers. The render
// loop calls every Sink once per frame from a single goroutine.
package transport

// Sink receives one magnitude spectrum per rendered frame. The slice is
// reused by the caller for the next frame, so implementations must copy
// anything they keep past the call. Send should not block for longer than
// a frame interval.
type Sink interface {
	Send(spectrum []float64) error
	Close() error
}
