// SPDX-License-Identifier: MIT
/*
Package resample maps a sequence of any length onto a fixed-length output
using linear interpolation. It is used to normalize FFT output to a fixed
number of bins and to fit a spectrum onto a display of arbitrary width.

The source is treated as len(src) control points spread evenly over [0, 1],
the first at 0 and the last at 1. Destination index i sits at
i / (len(dst) - 1) on the same line:

	src  = [3, 6, 2]            control points at 0, 0.5, 1
	dst  = 5 values             positions 0, 0.25, 0.5, 0.75, 1
	out  = [3, 4.5, 6, 4, 2]

Both endpoints are always preserved, which is why a destination shorter than
two values is rejected: it has no second position to map to.
*/
package resample

import (
	"errors"
	"math"
)

var (
	ErrEmptySource      = errors.New("resample: source is empty")
	ErrShortDestination = errors.New("resample: destination must hold at least 2 values")
)

// Float is the set of element types the resampler accepts.
type Float interface {
	~float32 | ~float64
}

// Into fills dst with src resampled to len(dst) values. It performs no
// allocations.
func Into[T Float](dst, src []T) error {
	if len(src) == 0 {
		return ErrEmptySource
	}
	if len(dst) < 2 {
		return ErrShortDestination
	}

	last := float64(len(src) - 1)
	span := float64(len(dst) - 1)

	for i := range dst {
		x := float64(i) / span * last
		lo := math.Floor(x)
		hi := math.Ceil(x)
		l, h := int(lo), int(hi)

		// x landed on a control point.
		if l == h {
			dst[i] = src[l]
			continue
		}

		y0 := float64(src[l])
		dst[i] = T(y0 + (x-lo)*(float64(src[h])-y0))
	}

	return nil
}

// To returns a new slice of n values holding src resampled.
func To[T Float](src []T, n int) ([]T, error) {
	if n < 2 {
		return nil, ErrShortDestination
	}
	dst := make([]T, n)
	if err := Into(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}
