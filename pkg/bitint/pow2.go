// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used when sizing capture
buffers. All operations are O(1), allocation free and safe to call from the
audio callback.

	bitint.IsPowerOfTwo(512)    // true
	bitint.NextPowerOfTwo(1000) // 1024

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves: Len(8-1) = 3 and 1<<3 = 8, whereas Len(8)
would give 16.
*/
package bitint

import "math/bits"

// Integer covers the signed widths buffer sizes are expressed in.
type Integer interface {
	~int | ~int32 | ~int64
}

// NextPowerOfTwo returns the smallest power of 2 >= n. Zero and negative
// inputs return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo[T Integer](n T) T {
	if n <= 0 {
		return 1
	}
	return T(1) << bits.Len64(uint64(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
func IsPowerOfTwo[T Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}
