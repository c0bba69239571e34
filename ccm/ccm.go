// Package ccm implements Kalyna's counter with CBC-MAC mode (CCM).
//
// The first CBC-MAC block holds the leading nonce bytes, the plaintext length in the next
// lengthSize bytes (little-endian) and a flags byte last: bit 7 is set when additional data is
// present, bits 4 to 6 encode the tag size and bits 0 to 2 hold lengthSize-1. Additional data, if
// any, follows behind a prefix carrying its length that aligns it to the end of a block. The
// plaintext comes last, terminated with 0x80 and zero-filled when it does not fill a block.
// Encryption is counter mode over the plaintext followed by the tag.
package ccm

import (
	"crypto/cipher"
	"crypto/subtle"
	"errors"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/ctr"
	"github.com/codahale/kalyna/internal/mem"
)

// ErrInvalidLengthSize is returned when the plaintext length field is not between 1 and 8 bytes or
// leaves no room for the nonce.
var ErrInvalidLengthSize = errors.New("kalyna/ccm: invalid length field size")

// DefaultLengthSize is the usual size of the plaintext length field.
const DefaultLengthSize = 4

var tagCodes = map[int]byte{8: 2, 16: 3, 32: 4, 48: 5, 64: 6}

// New returns a cipher.AEAD which uses b in CCM with tags of tagSize bytes and a plaintext length
// field of lengthSize bytes. The nonce is one block long; only its first
// b.BlockSize()-lengthSize-1 bytes enter the MAC, but all of it seeds the counter.
func New(b cipher.Block, tagSize, lengthSize int) (cipher.AEAD, error) {
	bs := b.BlockSize()
	code, ok := tagCodes[tagSize]
	if !ok || tagSize > bs {
		return nil, kalyna.ErrInvalidTagLength
	}
	if lengthSize < 1 || lengthSize > 8 || lengthSize+1 >= bs {
		return nil, ErrInvalidLengthSize
	}
	return &aead{b: b, tagSize: tagSize, lengthSize: lengthSize, tagCode: code}, nil
}

type aead struct {
	b          cipher.Block
	tagSize    int
	lengthSize int
	tagCode    byte
}

func (a *aead) NonceSize() int {
	return a.b.BlockSize()
}

func (a *aead) Overhead() int {
	return a.tagSize
}

func (a *aead) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != a.NonceSize() {
		panic("kalyna/ccm: invalid nonce size")
	}
	if a.lengthSize < 8 && uint64(len(plaintext)) >= 1<<(8*a.lengthSize) {
		panic("kalyna/ccm: message too large for length field")
	}

	tag := a.mac(nonce, plaintext, additionalData)

	s, err := ctr.New(a.b, nonce)
	if err != nil {
		panic(err)
	}
	ret, out := mem.SliceForAppend(dst, len(plaintext)+a.tagSize)
	s.XORKeyStream(out[:len(plaintext)], plaintext)
	s.XORKeyStream(out[len(plaintext):], tag)
	return ret
}

func (a *aead) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.NonceSize() {
		panic("kalyna/ccm: invalid nonce size")
	}

	if len(ciphertext) < a.tagSize {
		return nil, kalyna.ErrAuthenticationFailure
	}
	n := len(ciphertext) - a.tagSize

	s, err := ctr.New(a.b, nonce)
	if err != nil {
		panic(err)
	}
	ret, plaintext := mem.SliceForAppend(dst, n)
	receivedTag := make([]byte, a.tagSize)
	s.XORKeyStream(plaintext, ciphertext[:n])
	s.XORKeyStream(receivedTag, ciphertext[n:])

	expectedTag := a.mac(nonce, plaintext, additionalData)
	if subtle.ConstantTimeCompare(expectedTag, receivedTag) == 0 {
		clear(plaintext)
		return nil, kalyna.ErrAuthenticationFailure
	}
	return ret, nil
}

func (a *aead) mac(nonce, plaintext, additionalData []byte) []byte {
	bs := a.b.BlockSize()
	m := &cbcMAC{b: a.b, acc: make([]byte, bs)}

	b0 := make([]byte, bs)
	off := bs - a.lengthSize - 1
	copy(b0, nonce[:off])
	putLength(b0[off:off+a.lengthSize], uint64(len(plaintext)))
	b0[bs-1] = a.tagCode<<4 | byte(a.lengthSize-1)
	if len(additionalData) > 0 {
		b0[bs-1] |= 0x80
	}
	m.write(b0)

	if len(additionalData) > 0 {
		prefix := make([]byte, bs-len(additionalData)%bs)
		putLength(prefix[:min(len(prefix), 8)], uint64(len(additionalData)))
		m.write(prefix)
		m.write(additionalData)
	}

	m.write(plaintext)
	if m.n != 0 {
		m.write([]byte{0x80})
		m.flush()
	}
	return m.acc[:a.tagSize]
}

// putLength writes the low len(b) bytes of v into b, little-endian.
func putLength(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}

// cbcMAC is a CBC-MAC accumulator. n is the number of bytes of the current block already absorbed;
// unabsorbed bytes are implicitly zero.
type cbcMAC struct {
	b   cipher.Block
	acc []byte
	n   int
}

func (m *cbcMAC) write(p []byte) {
	for len(p) > 0 {
		k := min(len(p), len(m.acc)-m.n)
		mem.XOR(m.acc[m.n:m.n+k], m.acc[m.n:m.n+k], p[:k])
		m.n += k
		p = p[k:]
		if m.n == len(m.acc) {
			m.b.Encrypt(m.acc, m.acc)
			m.n = 0
		}
	}
}

// flush completes a partial block with zeros.
func (m *cbcMAC) flush() {
	if m.n != 0 {
		m.b.Encrypt(m.acc, m.acc)
		m.n = 0
	}
}

var _ cipher.AEAD = (*aead)(nil)
