// Package gcm implements Kalyna's Galois/counter mode (GCM) and the GMAC tag function.
//
// The tag function differs from NIST GCM in two ways: a partial final block of the additional data
// or ciphertext is terminated with a 0x80 byte before zero-filling, and the block holding the
// lengths is XORed into the accumulator without a final multiplication by H. Both are required to
// interoperate with other DSTU 7624 implementations.
package gcm

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/ctr"
	"github.com/codahale/kalyna/internal/gf2m"
	"github.com/codahale/kalyna/internal/mem"
)

// MinTagSize is the smallest supported tag size in bytes.
const MinTagSize = 8

// New returns a cipher.AEAD which uses b in GCM with tags of tagSize bytes. The nonce is one block
// long and is used as the counter-mode IV. tagSize must be between MinTagSize and the block size.
func New(b cipher.Block, tagSize int) (cipher.AEAD, error) {
	if err := check(b, tagSize); err != nil {
		return nil, err
	}
	return &aead{b: b, tagSize: tagSize}, nil
}

// GMAC returns the tag of tagSize bytes over aad and data.
func GMAC(b cipher.Block, aad, data []byte, tagSize int) ([]byte, error) {
	if err := check(b, tagSize); err != nil {
		return nil, err
	}
	return sum(nil, b, aad, data, tagSize), nil
}

func check(b cipher.Block, tagSize int) error {
	bs := b.BlockSize()
	if !gf2m.Supported(bs) {
		return kalyna.ErrUnsupportedBlockSize
	}
	if tagSize < MinTagSize || tagSize > bs {
		return kalyna.ErrInvalidTagLength
	}
	return nil
}

type aead struct {
	b       cipher.Block
	tagSize int
}

func (a *aead) NonceSize() int {
	return a.b.BlockSize()
}

func (a *aead) Overhead() int {
	return a.tagSize
}

func (a *aead) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != a.NonceSize() {
		panic("kalyna/gcm: invalid nonce size")
	}

	ret, out := mem.SliceForAppend(dst, len(plaintext)+a.tagSize)
	ciphertext, tag := out[:len(plaintext)], out[len(plaintext):]
	if err := ctr.XORKeyStream(a.b, nonce, ciphertext, plaintext); err != nil {
		panic(err)
	}
	sum(tag[:0], a.b, additionalData, ciphertext, a.tagSize)
	return ret
}

func (a *aead) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.NonceSize() {
		panic("kalyna/gcm: invalid nonce size")
	}

	if len(ciphertext) < a.tagSize {
		return nil, kalyna.ErrAuthenticationFailure
	}
	ciphertext, receivedTag := ciphertext[:len(ciphertext)-a.tagSize], ciphertext[len(ciphertext)-a.tagSize:]

	var tagBuf [gf2m.MaxSize]byte
	expectedTag := sum(tagBuf[:0], a.b, additionalData, ciphertext, a.tagSize)
	if subtle.ConstantTimeCompare(expectedTag, receivedTag) == 0 {
		return nil, kalyna.ErrAuthenticationFailure
	}

	ret, out := mem.SliceForAppend(dst, len(ciphertext))
	if err := ctr.XORKeyStream(a.b, nonce, out, ciphertext); err != nil {
		panic(err)
	}
	return ret, nil
}

// sum appends the tag over aad and data to dst.
func sum(dst []byte, b cipher.Block, aad, data []byte, tagSize int) []byte {
	bs := b.BlockSize()
	var hBuf, accBuf, blockBuf [gf2m.MaxSize]byte
	h, acc, block := hBuf[:bs], accBuf[:bs], blockBuf[:bs]

	b.Encrypt(h, h)
	for _, in := range [][]byte{aad, data} {
		for len(in) > 0 {
			n := copy(block, in)
			if n < bs {
				block[n] = 0x80
				clear(block[n+1:])
			}
			mem.XOR(acc, acc, block)
			gf2m.Mul(acc, acc, h)
			in = in[n:]
		}
	}

	clear(block)
	binary.LittleEndian.PutUint64(block, uint64(len(aad))*8)
	binary.LittleEndian.PutUint64(block[bs/2:], uint64(len(data))*8)
	mem.XOR(acc, acc, block)

	b.Encrypt(acc, acc)
	return append(dst, acc[:tagSize]...)
}

var _ cipher.AEAD = (*aead)(nil)
