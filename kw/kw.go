// Package kw implements Kalyna's key wrap (DSTU 7624:2014, section 14).
//
// Key material is padded to whole blocks, extended by one zero block, and run through a Feistel
// network of 6(n-1) rounds over its n half-blocks, each round encrypting the accumulator together
// with the next half-block of the chain. Unwrap checks the zero block to detect corruption and
// removes the padding.
//
// Padding is only added when the key material is not a multiple of the block size: its bit length,
// little-endian in a half-block field, is appended and the result is padded with 0x80 and zeros.
//
// The format is ambiguous: aligned key material which happens to end in such a length field (and
// optional 0x80 padding) wraps to the same bytes as the shorter material it describes, and Unwrap
// returns the shorter one. Callers wrapping aligned material of arbitrary content should record its
// length out of band.
package kw

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/internal/mem"
	"github.com/codahale/kalyna/padding"
)

// ErrEmptyKeyMaterial is returned when asked to wrap nothing.
var ErrEmptyKeyMaterial = errors.New("kalyna/kw: empty key material")

// WrappedLen returns the length of the wrapped form of n bytes of key material.
func WrappedLen(blockSize, n int) int {
	if n%blockSize != 0 {
		n += blockSize / 2
		n += (blockSize - n%blockSize) % blockSize
	}
	return n + blockSize
}

// Wrap returns keyMaterial wrapped with b.
func Wrap(b cipher.Block, keyMaterial []byte) ([]byte, error) {
	bs := b.BlockSize()
	if bs < kalyna.BlockSize128 || bs%2 != 0 {
		return nil, kalyna.ErrUnsupportedBlockSize
	}
	if len(keyMaterial) == 0 {
		return nil, ErrEmptyKeyMaterial
	}
	half := bs / 2

	buf := make([]byte, 0, WrappedLen(bs, len(keyMaterial)))
	buf = append(buf, keyMaterial...)
	if len(keyMaterial)%bs != 0 {
		field := make([]byte, half)
		for i, bits := 0, uint64(len(keyMaterial))*8; bits > 0; i, bits = i+1, bits>>8 {
			field[i] = byte(bits)
		}
		buf = padding.Pad(append(buf, field...), bs)
	}
	buf = append(buf, make([]byte, bs)...)

	// The accumulator is the first half-block and the remaining half-blocks form a ring. Each round
	// consumes the slot at the head of the ring and refills it with the new tail, so after a multiple
	// of the ring length rounds the ring is back in order.
	a, ring := buf[:half], buf[half:]
	slots := len(ring) / half
	block := make([]byte, bs)
	for i := 1; i <= 6*slots; i++ {
		slot := ring[(i-1)%slots*half:][:half]
		copy(block, a)
		copy(block[half:], slot)
		b.Encrypt(block, block)
		block[half] ^= byte(i)
		copy(a, block[half:])
		copy(slot, block[:half])
	}
	return buf, nil
}

// Unwrap returns the key material wrapped in wrapped. It returns kalyna.ErrInvalidWrappedKeyLength if
// wrapped is shorter than two blocks or not a multiple of the block size, and
// kalyna.ErrAuthenticationFailure if the integrity block does not verify.
func Unwrap(b cipher.Block, wrapped []byte) ([]byte, error) {
	bs := b.BlockSize()
	if bs < kalyna.BlockSize128 || bs%2 != 0 {
		return nil, kalyna.ErrUnsupportedBlockSize
	}
	if len(wrapped) < 2*bs || len(wrapped)%bs != 0 {
		return nil, kalyna.ErrInvalidWrappedKeyLength
	}
	half := bs / 2

	buf := make([]byte, len(wrapped))
	copy(buf, wrapped)

	a, ring := buf[:half], buf[half:]
	slots := len(ring) / half
	block := make([]byte, bs)
	for i := 6 * slots; i >= 1; i-- {
		slot := ring[(i-1)%slots*half:][:half]
		copy(block, slot)
		copy(block[half:], a)
		block[half] ^= byte(i)
		b.Decrypt(block, block)
		copy(a, block[:half])
		copy(slot, block[half:])
	}

	data, check := buf[:len(buf)-bs], buf[len(buf)-bs:]
	if !mem.IsZero(check) {
		clear(buf)
		return nil, kalyna.ErrAuthenticationFailure
	}
	return unpad(data, bs), nil
}

// unpad strips the length field and padding added by Wrap, if present.
func unpad(data []byte, bs int) []byte {
	i := len(data) - 1
	for i >= 0 && data[i] == 0 {
		i--
	}
	if i >= 0 && data[i] == 0x80 && len(data)-i <= bs {
		if km, ok := lengthTagged(data[:i], bs); ok {
			return km
		}
	}
	if km, ok := lengthTagged(data, bs); ok {
		return km
	}
	return data
}

// lengthTagged reports whether data ends in a half-block field holding the bit length of the
// unaligned key material before it, and returns that key material.
func lengthTagged(data []byte, bs int) ([]byte, bool) {
	half := bs / 2
	m := len(data) - half
	if m <= 0 || m%bs == 0 {
		return nil, false
	}

	field := data[m:]
	if !mem.IsZero(field[8:]) || binary.LittleEndian.Uint64(field) != uint64(m)*8 {
		return nil, false
	}
	return data[:m], true
}
