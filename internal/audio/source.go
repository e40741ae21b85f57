// SPDX-License-Identifier: MIT
package audio

import "context"

// Handler receives capture output. Both methods are called from the
// source's capture goroutine (or the PortAudio callback thread) and must
// not block.
type Handler interface {
	HandleBatch(b Batch)
	HandleError(err error)
}

// Source produces interleaved batches until its context is cancelled.
type Source interface {
	// Format is resolved when the source is constructed and never changes.
	Format() Format
	// Run delivers batches to h and blocks until ctx is done, the input
	// ends, or a fatal error occurs. Per-callback problems go to
	// h.HandleError and do not stop the stream.
	Run(ctx context.Context, h Handler) error
	Close() error
}
