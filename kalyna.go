// Package kalyna implements the Kalyna block cipher (DSTU 7624:2014).
//
// Kalyna is an SP-network with 128-, 256- and 512-bit blocks. Each block size accepts a key of the
// same length or of twice the length. A Cipher implements crypto/cipher.Block, so it can be used
// with the standard library's chaining modes as well as with the modes in this module's
// subpackages (ctr, gcm, ccm, xts, kw, cmac, modes).
//
// The implementation is table-driven and makes no attempt at constant-time operation.
package kalyna

import (
	"crypto/cipher"
	"errors"
	"strconv"

	"github.com/codahale/kalyna/internal/words"
)

// Block sizes in bytes.
const (
	BlockSize128 = 16
	BlockSize256 = 32
	BlockSize512 = 64
)

const maxWords = BlockSize512 / 8

var (
	// ErrInvalidKeyLength is returned when a key is neither one nor two block sizes long.
	ErrInvalidKeyLength = errors.New("kalyna: invalid key length")

	// ErrInvalidBlockLength is returned when an input is not the length a construction requires.
	ErrInvalidBlockLength = errors.New("kalyna: invalid block length")

	// ErrInvalidIVLength is returned when an IV or nonce is not exactly one block long.
	ErrInvalidIVLength = errors.New("kalyna: invalid IV length")

	// ErrInvalidWrappedKeyLength is returned when wrapped key material is too short or unaligned.
	ErrInvalidWrappedKeyLength = errors.New("kalyna: invalid wrapped key length")

	// ErrAuthenticationFailure is returned when a tag or integrity check does not verify.
	ErrAuthenticationFailure = errors.New("kalyna: authentication failure")

	// ErrInvalidTagLength is returned when a requested tag size is not supported.
	ErrInvalidTagLength = errors.New("kalyna: invalid tag length")

	// ErrUnsupportedBlockSize is returned when a construction is given a block cipher whose block size
	// is not 16, 32 or 64 bytes.
	ErrUnsupportedBlockSize = errors.New("kalyna: unsupported block size")
)

// KeySizeError reports a key of the wrong length for the requested block size.
type KeySizeError int

func (k KeySizeError) Error() string {
	return "kalyna: invalid key size " + strconv.Itoa(int(k))
}

// Unwrap returns ErrInvalidKeyLength.
func (k KeySizeError) Unwrap() error {
	return ErrInvalidKeyLength
}

// A Cipher is an instance of Kalyna with a fixed block size and key. Its round keys are computed
// once by NewCipher and never modified, so a Cipher is safe for concurrent use.
type Cipher struct {
	n        int // words per block
	rounds   int // keyed rounds between the first and last key additions
	glOffset int // word offset of the final round key
	erk, drk []uint64
}

// NewCipher returns a Kalyna instance with the given block size (BlockSize128, BlockSize256 or
// BlockSize512) and a key of either blockSize or 2*blockSize bytes.
func NewCipher(blockSize int, key []byte) (*Cipher, error) {
	switch blockSize {
	case BlockSize128, BlockSize256, BlockSize512:
	default:
		return nil, ErrUnsupportedBlockSize
	}

	if len(key) != blockSize && len(key) != 2*blockSize {
		return nil, KeySizeError(len(key))
	}

	c := &Cipher{n: blockSize / 8}
	c.expandKey(key)
	return c, nil
}

// BlockSize returns the cipher's block size in bytes.
func (c *Cipher) BlockSize() int {
	return 8 * c.n
}

// Encrypt encrypts the first block in src into dst. dst and src may overlap entirely.
func (c *Cipher) Encrypt(dst, src []byte) {
	bs := c.BlockSize()
	if len(src) < bs {
		panic("kalyna: input not full block")
	}
	if len(dst) < bs {
		panic("kalyna: output not full block")
	}
	c.encrypt(dst, src)
}

// Decrypt decrypts the first block in src into dst. dst and src may overlap entirely.
func (c *Cipher) Decrypt(dst, src []byte) {
	bs := c.BlockSize()
	if len(src) < bs {
		panic("kalyna: input not full block")
	}
	if len(dst) < bs {
		panic("kalyna: output not full block")
	}
	c.decrypt(dst, src)
}

// EncryptBlock returns the encryption of block, which must be exactly one block long.
func (c *Cipher) EncryptBlock(block []byte) ([]byte, error) {
	if len(block) != c.BlockSize() {
		return nil, ErrInvalidBlockLength
	}
	out := make([]byte, len(block))
	c.encrypt(out, block)
	return out, nil
}

// DecryptBlock returns the decryption of block, which must be exactly one block long.
func (c *Cipher) DecryptBlock(block []byte) ([]byte, error) {
	if len(block) != c.BlockSize() {
		return nil, ErrInvalidBlockLength
	}
	out := make([]byte, len(block))
	c.decrypt(out, block)
	return out, nil
}

func (c *Cipher) encrypt(dst, src []byte) {
	n := c.n
	var a, b [maxWords]uint64
	x, y := a[:n], b[:n]

	words.Load(x, src)
	add(x, x, c.erk[:n])
	for r := range c.rounds {
		off := n + r*n
		g(y, x, c.erk[off:off+n])
		x, y = y, x
	}
	gl(y, x, c.erk[c.glOffset:c.glOffset+n])
	words.Store(dst, y)
}

func (c *Cipher) decrypt(dst, src []byte) {
	n := c.n
	var a, b [maxWords]uint64
	x, y := a[:n], b[:n]

	words.Load(x, src)
	for i := range x {
		x[i] -= c.drk[c.glOffset+i]
	}
	imc(x)
	for r := range c.rounds {
		off := c.glOffset - n - r*n
		ig(y, x, c.drk[off:off+n])
		x, y = y, x
	}
	igl(y, x, c.drk[:n])
	words.Store(dst, y)
}

var _ cipher.Block = (*Cipher)(nil)
