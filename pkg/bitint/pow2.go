// SPDX-License-Identifier: MIT

/*
Package bitint provides power-of-two helpers for sizing FFT windows and
buffers. All functions are O(1) and allocation free.

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves:

	8 -> 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	9 -> 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, and 1 for
// size <= 0.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
