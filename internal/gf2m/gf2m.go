// Package gf2m implements arithmetic in GF(2^128), GF(2^256) and GF(2^512) as used by Kalyna's
// authenticated and tweakable modes.
//
// Field elements are byte strings in little-endian bit order: bit i of byte j is the coefficient of
// x^(8j+i). Reduction polynomials are
//
//	GF(2^128): x^128 + x^7 + x^2 + x + 1
//	GF(2^256): x^256 + x^10 + x^5 + x^2 + 1
//	GF(2^512): x^512 + x^8 + x^5 + x^2 + 1
package gf2m

import "github.com/codahale/kalyna/internal/mem"

// MaxSize is the largest supported element size in bytes.
const MaxSize = 64

// Supported reports whether elements of n bytes are supported.
func Supported(n int) bool {
	return reduction(n) != nil
}

func reduction(n int) []byte {
	switch n {
	case 16:
		return []byte{0x87}
	case 32:
		return []byte{0x25, 0x04}
	case 64:
		return []byte{0x25, 0x01}
	default:
		return nil
	}
}

// Mul sets dst to a*b. a, b and dst must have the same supported length, and dst may alias either
// operand.
func Mul(dst, a, b []byte) {
	n := len(a)
	r := reduction(n)
	if r == nil || len(b) != n || len(dst) != n {
		panic("kalyna/gf2m: invalid element length")
	}

	var tb, pb [MaxSize]byte
	t, p := tb[:n], pb[:n]
	copy(t, a)
	for i := range 8 * n {
		if b[i/8]>>(i%8)&1 == 1 {
			mem.XOR(p, p, t)
		}
		shift(t, r)
	}
	copy(dst, p)
}

// Double sets dst to a*x. dst may alias a.
func Double(dst, a []byte) {
	r := reduction(len(a))
	if r == nil || len(dst) != len(a) {
		panic("kalyna/gf2m: invalid element length")
	}
	copy(dst, a)
	shift(dst, r)
}

// shift multiplies t by x in place.
func shift(t, r []byte) {
	carry := t[len(t)-1] >> 7
	for j := len(t) - 1; j > 0; j-- {
		t[j] = t[j]<<1 | t[j-1]>>7
	}
	t[0] <<= 1
	if carry != 0 {
		for j, v := range r {
			t[j] ^= v
		}
	}
}
