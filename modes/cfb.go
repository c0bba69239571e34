package modes

import (
	"crypto/cipher"
	"errors"
	"slices"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/internal/mem"
)

// ErrInvalidSegmentSize is returned when a CFB segment size is not one of 1, 8, 16, 32 or 64 bytes
// or exceeds the block size.
var ErrInvalidSegmentSize = errors.New("kalyna/modes: invalid CFB segment size")

type cfb struct {
	b        cipher.Block
	gamma    []byte
	seg      []byte
	q        int
	decrypt  bool
	finished bool
}

// NewCFBEncrypter returns a cipher.Stream which encrypts with b in cipher feedback mode using
// segments of segmentSize bytes.
//
// A message may be split over any number of XORKeyStream calls whose lengths are multiples of the
// segment size. A call which ends on a partial segment finishes the message: the partial segment is masked with the last bytes of the
// gamma block, and any later call panics.
func NewCFBEncrypter(b cipher.Block, iv []byte, segmentSize int) (cipher.Stream, error) {
	return newCFB(b, iv, segmentSize, false)
}

// NewCFBDecrypter returns a cipher.Stream which decrypts with b in cipher feedback mode. See
// NewCFBEncrypter.
func NewCFBDecrypter(b cipher.Block, iv []byte, segmentSize int) (cipher.Stream, error) {
	return newCFB(b, iv, segmentSize, true)
}

func newCFB(b cipher.Block, iv []byte, q int, decrypt bool) (*cfb, error) {
	bs := b.BlockSize()
	if len(iv) != bs {
		return nil, kalyna.ErrInvalidIVLength
	}
	if !slices.Contains([]int{1, 8, 16, 32, 64}, q) || q > bs {
		return nil, ErrInvalidSegmentSize
	}

	s := &cfb{
		b:       b,
		gamma:   make([]byte, bs),
		seg:     make([]byte, q),
		q:       q,
		decrypt: decrypt,
	}
	b.Encrypt(s.gamma, iv)
	return s, nil
}

func (s *cfb) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("kalyna/modes: output smaller than input")
	}
	if s.finished {
		panic("kalyna/modes: CFB stream used after a partial segment")
	}

	bs, q := len(s.gamma), s.q
	for len(src) >= q {
		// The new gamma is E(gamma[:bs-q] ‖ c): keep the head, overwrite the tail with c.
		c := s.gamma[bs-q:]
		if s.decrypt {
			copy(s.seg, src[:q])
			mem.XOR(dst[:q], src[:q], c)
			copy(c, s.seg)
		} else {
			mem.XOR(dst[:q], src[:q], c)
			copy(c, dst[:q])
		}
		s.b.Encrypt(s.gamma, s.gamma)
		dst, src = dst[q:], src[q:]
	}

	if r := len(src); r > 0 {
		mem.XOR(dst[:r], src, s.gamma[bs-r:])
		s.finished = true
	}
}

var _ cipher.Stream = (*cfb)(nil)
