// Package mem provides byte-slice helpers shared by the modes.
package mem

import (
	"crypto/subtle"
	"slices"
)

// XOR sets dst[i] = a[i] ^ b[i] for every index of dst. Slices longer than 16 bytes go through
// subtle.XORBytes, which has vectorized implementations; shorter ones use a scalar loop.
func XOR(dst, a, b []byte) {
	if len(dst) > 16 {
		subtle.XORBytes(dst, a, b)
	} else {
		for i := range dst {
			dst[i] = a[i] ^ b[i]
		}
	}
}

// SliceForAppend takes a slice and a requested number of bytes. It returns a slice with the contents
// of the given slice followed by that many bytes and a second slice that aliases into it and
// contains only the extra bytes. If the original slice has sufficient capacity, then no allocation
// is performed.
func SliceForAppend(in []byte, n int) (head, tail []byte) {
	head = slices.Grow(in, n)
	head = head[:len(in)+n]
	tail = head[len(in):]
	return head, tail
}

// IsZero reports whether every byte of b is zero, in time that depends only on len(b).
func IsZero(b []byte) bool {
	var v byte
	for _, x := range b {
		v |= x
	}
	return subtle.ConstantTimeByteEq(v, 0) == 1
}
