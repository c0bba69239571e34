// Package cmac implements the block cipher based MAC of DSTU 7624:2014.
//
// The message is processed in CBC mode. The final block is XORed with a masking key before its
// encryption: the encryption of the zero block when the message fills whole blocks, or of the block
// 01 00 .. 00 when the last block had to be padded with 0x80 and zeros. An empty message is padded.
package cmac

import (
	"crypto/cipher"
	"crypto/subtle"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/internal/mem"
)

// Sum returns the tagSize-byte MAC of data under b. tagSize must be between 1 and the block size.
func Sum(b cipher.Block, data []byte, tagSize int) ([]byte, error) {
	bs := b.BlockSize()
	if tagSize < 1 || tagSize > bs {
		return nil, kalyna.ErrInvalidTagLength
	}

	mask := make([]byte, bs)
	last := make([]byte, bs)
	full, m := len(data)/bs, len(data)%bs
	if m == 0 && full > 0 {
		full--
		copy(last, data[full*bs:])
	} else {
		copy(last, data[full*bs:])
		last[m] = 0x80
		mask[0] = 1
	}
	b.Encrypt(mask, mask)

	c := make([]byte, bs)
	for i := range full {
		mem.XOR(c, c, data[i*bs:(i+1)*bs])
		b.Encrypt(c, c)
	}
	mem.XOR(c, c, last)
	mem.XOR(c, c, mask)
	b.Encrypt(c, c)
	return c[:tagSize], nil
}

// Verify reports whether tag is the MAC of data under b, in constant time with respect to the tag
// contents.
func Verify(b cipher.Block, data, tag []byte) bool {
	expected, err := Sum(b, data, len(tag))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, tag) == 1
}
