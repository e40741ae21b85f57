// SPDX-License-Identifier: MIT
/*
Package samples holds the rolling window of captured audio shared between the
capture goroutine (producer) and the render loop (consumer).

Thread Safety:
  - One mutex guards the window; Append and Snapshot hold it only for the
    mutation or copy itself
  - A snapshot never sees part of a batch: deinterleave, append and trim
    happen under a single lock
  - Storage is a fixed ring allocated once, so Append does not allocate
*/
package samples

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrZeroChannels    = errors.New("samples: channel count must be positive")
	ErrInvalidCapacity = errors.New("samples: capacity must be positive")
	ErrCapacityFixed   = errors.New("samples: capacity already set")
	ErrCapacityUnset   = errors.New("samples: capacity not set")
)

// Capacity derives the window length in single-channel samples for a
// stream of sampleRate samples per second spread over channels.
func Capacity(targetSeconds, sampleRate float64, channels int) (int, error) {
	if channels <= 0 {
		return 0, ErrZeroChannels
	}
	perChannel := sampleRate / float64(channels)
	n := math.Round(targetSeconds * perChannel)
	if n < 1 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, ErrInvalidCapacity
	}
	return int(n), nil
}

// Store is a bounded window of the most recent mono samples in
// chronological order. The zero value is not usable; see NewStore.
type Store struct {
	mu       sync.Mutex
	ring     []float32 // len == capacity once set
	head     int       // next write position
	length   int       // valid samples
	capacity int
}

// NewStore returns an empty store with no capacity. SetCapacity must be
// called once the capture format is known.
func NewStore() *Store {
	return &Store{}
}

// SetCapacity sizes the window. It may only be called once; the length
// invariant does not survive a mid-stream resize.
func (s *Store) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity != 0 {
		return ErrCapacityFixed
	}
	s.ring = make([]float32, capacity)
	s.capacity = capacity
	return nil
}

// Capacity returns the window size, or 0 before SetCapacity.
func (s *Store) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Len returns the number of samples currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// Append keeps channel 0 of every frame in the interleaved batch and adds
// those samples to the end of the window, discarding the oldest samples
// beyond capacity. A trailing partial frame still contributes its first
// sample.
func (s *Store) Append(batch []float32, channels int) error {
	if channels <= 0 {
		return ErrZeroChannels
	}

	frames := (len(batch) + channels - 1) / channels

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity == 0 {
		return ErrCapacityUnset
	}

	// Frames that would be trimmed by this same append are never written.
	first := 0
	if frames > s.capacity {
		first = frames - s.capacity
	}

	for f := first; f < frames; f++ {
		s.ring[s.head] = batch[f*channels]
		s.head++
		if s.head == s.capacity {
			s.head = 0
		}
	}

	s.length += frames - first
	if s.length > s.capacity {
		s.length = s.capacity
	}

	return nil
}

// Snapshot returns an owned copy of the window, oldest sample first.
func (s *Store) Snapshot() []float32 {
	return s.SnapshotInto(nil)
}

// SnapshotInto copies the window into dst, reusing its backing array when
// large enough, and returns the filled slice.
func (s *Store) SnapshotInto(dst []float32) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cap(dst) < s.length {
		dst = make([]float32, s.length)
	}
	dst = dst[:s.length]
	if s.length == 0 {
		return dst
	}

	start := s.head - s.length
	if start < 0 {
		start += s.capacity
	}
	n := copy(dst, s.ring[start:min(start+s.length, s.capacity)])
	copy(dst[n:], s.ring[:s.length-n])

	return dst
}

// Deinterleave appends channel 0 of each frame in src to dst[:0], using the
// same selection rule as Append.
func Deinterleave(dst, src []float32, channels int) ([]float32, error) {
	if channels <= 0 {
		return dst[:0], ErrZeroChannels
	}
	dst = dst[:0]
	for i := 0; i < len(src); i += channels {
		dst = append(dst, src[i])
	}
	return dst, nil
}
