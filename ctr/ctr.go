// Package ctr implements counter mode as defined for Kalyna.
//
// The counter starts at the encryption of the IV and is incremented, as a little-endian integer,
// before each keystream block is generated. This differs from crypto/cipher.NewCTR, which uses the
// IV itself as the first counter value and increments big-endian.
package ctr

import (
	"crypto/cipher"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/internal/mem"
)

// New returns a cipher.Stream which encrypts or decrypts with b in counter mode. The IV must be
// exactly one block long.
func New(b cipher.Block, iv []byte) (cipher.Stream, error) {
	bs := b.BlockSize()
	if len(iv) != bs {
		return nil, kalyna.ErrInvalidIVLength
	}

	s := &stream{
		b:       b,
		counter: make([]byte, bs),
		ks:      make([]byte, bs),
		used:    bs,
	}
	b.Encrypt(s.counter, iv)
	return s, nil
}

// XORKeyStream XORs src with the keystream for b and iv, writing the result to dst.
func XORKeyStream(b cipher.Block, iv, dst, src []byte) error {
	s, err := New(b, iv)
	if err != nil {
		return err
	}
	s.XORKeyStream(dst, src)
	return nil
}

type stream struct {
	b       cipher.Block
	counter []byte
	ks      []byte
	used    int
}

func (s *stream) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("kalyna/ctr: output smaller than input")
	}

	for len(src) > 0 {
		if s.used == len(s.ks) {
			increment(s.counter)
			s.b.Encrypt(s.ks, s.counter)
			s.used = 0
		}

		n := min(len(src), len(s.ks)-s.used)
		mem.XOR(dst[:n], src[:n], s.ks[s.used:s.used+n])
		dst, src = dst[n:], src[n:]
		s.used += n
	}
}

// increment adds one to the little-endian integer in b.
func increment(b []byte) {
	for i := range b {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}

var _ cipher.Stream = (*stream)(nil)
