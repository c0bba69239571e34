// Package xts implements Kalyna's XTS mode with ciphertext stealing.
//
// XTS is a tweakable mode for storage encryption: every sector is encrypted independently under a
// tweak derived from its IV (usually the sector number), so sectors can be read and written in any
// order. Unlike IEEE P1619, a single key is used for both the tweak and the data, and the tweak is
// doubled before, not after, each block. Data need not be a multiple of the block size, but must be
// at least one block long; a trailing partial block is handled by ciphertext stealing and the
// output is always exactly as long as the input.
package xts

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/internal/gf2m"
	"github.com/codahale/kalyna/internal/mem"
)

// Cipher encrypts and decrypts data with a block cipher in XTS mode.
type Cipher struct {
	b          cipher.Block
	sectorSize int
}

// New returns a Cipher using b with sectors of sectorSize bytes. The sector size only matters for the
// sector helpers and the ReaderAt and WriterAt adapters; it must be at least one block.
func New(b cipher.Block, sectorSize int) (*Cipher, error) {
	bs := b.BlockSize()
	if !gf2m.Supported(bs) {
		return nil, kalyna.ErrUnsupportedBlockSize
	}
	if sectorSize < bs {
		return nil, fmt.Errorf("%w: sector size %d is smaller than the block size %d",
			kalyna.ErrInvalidBlockLength, sectorSize, bs)
	}
	return &Cipher{b: b, sectorSize: sectorSize}, nil
}

// SectorSize returns the sector size.
func (c *Cipher) SectorSize() int {
	return c.sectorSize
}

// Encrypt encrypts src into dst with the given IV, which must be one block long. src must be at
// least one block long. dst and src must overlap entirely or not at all.
func (c *Cipher) Encrypt(dst, src, iv []byte) error {
	if err := c.check(dst, src, iv); err != nil {
		return err
	}

	bs := c.b.BlockSize()
	var tBuf, blockBuf [gf2m.MaxSize]byte
	t, block := tBuf[:bs], blockBuf[:bs]
	c.b.Encrypt(t, iv)

	full, m := len(src)/bs, len(src)%bs
	for i := range full {
		gf2m.Double(t, t)
		xex(c.b.Encrypt, dst[i*bs:(i+1)*bs], src[i*bs:(i+1)*bs], t)
	}

	if m != 0 {
		// The short final block borrows the tail of the previous ciphertext block, and the two swap
		// places.
		gf2m.Double(t, t)
		last := (full - 1) * bs
		copy(block, src[full*bs:])
		copy(block[m:], dst[last+m:last+bs])
		copy(dst[full*bs:], dst[last:last+m])
		xex(c.b.Encrypt, dst[last:last+bs], block, t)
	}
	return nil
}

// Decrypt decrypts src into dst with the given IV, which must be one block long. src must be at
// least one block long. dst and src must overlap entirely or not at all.
func (c *Cipher) Decrypt(dst, src, iv []byte) error {
	if err := c.check(dst, src, iv); err != nil {
		return err
	}

	bs := c.b.BlockSize()
	var tBuf, nextBuf, blockBuf, stolenBuf [gf2m.MaxSize]byte
	t, next, block, stolen := tBuf[:bs], nextBuf[:bs], blockBuf[:bs], stolenBuf[:bs]
	c.b.Encrypt(t, iv)

	full, m := len(src)/bs, len(src)%bs
	n := full
	if m != 0 {
		n--
	}
	for i := range n {
		gf2m.Double(t, t)
		xex(c.b.Decrypt, dst[i*bs:(i+1)*bs], src[i*bs:(i+1)*bs], t)
	}

	if m != 0 {
		// The last full ciphertext block was encrypted under the following tweak.
		gf2m.Double(t, t)
		gf2m.Double(next, t)
		last := (full - 1) * bs
		xex(c.b.Decrypt, block, src[last:last+bs], next)
		copy(stolen, src[full*bs:])
		copy(stolen[m:], block[m:])
		copy(dst[full*bs:], block[:m])
		xex(c.b.Decrypt, dst[last:last+bs], stolen, t)
	}
	return nil
}

func (c *Cipher) check(dst, src, iv []byte) error {
	bs := c.b.BlockSize()
	if len(iv) != bs {
		return kalyna.ErrInvalidIVLength
	}
	if len(src) < bs {
		return kalyna.ErrInvalidBlockLength
	}
	if len(dst) < len(src) {
		panic("kalyna/xts: output smaller than input")
	}
	return nil
}

// xex sets dst to f(src ^ t) ^ t.
func xex(f func(dst, src []byte), dst, src, t []byte) {
	mem.XOR(dst, src, t)
	f(dst, dst)
	mem.XOR(dst, dst, t)
}

// SectorIV returns the IV for the given sector number: the number little-endian in the first eight
// bytes, zeros elsewhere.
func (c *Cipher) SectorIV(sectorNum uint64) []byte {
	iv := make([]byte, c.b.BlockSize())
	binary.LittleEndian.PutUint64(iv, sectorNum)
	return iv
}

// EncryptSector encrypts a single sector in place.
func (c *Cipher) EncryptSector(sector []byte, sectorNum uint64) error {
	if len(sector) != c.sectorSize {
		return fmt.Errorf("kalyna/xts: sector length %d != sector size %d", len(sector), c.sectorSize)
	}
	return c.Encrypt(sector, sector, c.SectorIV(sectorNum))
}

// DecryptSector decrypts a single sector in place.
func (c *Cipher) DecryptSector(sector []byte, sectorNum uint64) error {
	if len(sector) != c.sectorSize {
		return fmt.Errorf("kalyna/xts: sector length %d != sector size %d", len(sector), c.sectorSize)
	}
	return c.Decrypt(sector, sector, c.SectorIV(sectorNum))
}

// EncryptSectors encrypts consecutive sectors in place, starting at startSector.
func (c *Cipher) EncryptSectors(data []byte, startSector uint64) error {
	return c.sectors(c.EncryptSector, data, startSector)
}

// DecryptSectors decrypts consecutive sectors in place, starting at startSector.
func (c *Cipher) DecryptSectors(data []byte, startSector uint64) error {
	return c.sectors(c.DecryptSector, data, startSector)
}

func (c *Cipher) sectors(f func([]byte, uint64) error, data []byte, sectorNum uint64) error {
	if len(data)%c.sectorSize != 0 {
		return fmt.Errorf("kalyna/xts: data length %d not a multiple of sector size %d", len(data), c.sectorSize)
	}
	for i := 0; i < len(data); i += c.sectorSize {
		if err := f(data[i:i+c.sectorSize], sectorNum); err != nil {
			return err
		}
		sectorNum++
	}
	return nil
}

var errNegativeOffset = errors.New("kalyna/xts: negative offset")

// ReaderAt decrypts an encrypted volume of whole sectors on read.
type ReaderAt struct {
	r    io.ReaderAt
	c    *Cipher
	size int64
}

// NewReaderAt returns a ReaderAt over r, which holds size bytes of ciphertext.
func NewReaderAt(r io.ReaderAt, c *Cipher, size int64) *ReaderAt {
	return &ReaderAt{r: r, c: c, size: size}
}

// ReadAt reads and decrypts the sectors covering [off, off+len(p)) and copies the requested range
// into p.
func (x *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= x.size {
		return 0, io.EOF
	}

	ss := int64(x.c.sectorSize)
	end := min(off+int64(len(p)), x.size)
	first, last := off/ss, (end+ss-1)/ss

	buf := make([]byte, (last-first)*ss)
	n, err := x.r.ReadAt(buf, first*ss)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}

	whole := n / int(ss) * int(ss)
	if whole == 0 {
		if n > 0 {
			return 0, fmt.Errorf("kalyna/xts: partial sector read (%d bytes)", n)
		}
		return 0, io.EOF
	}
	if err := x.c.DecryptSectors(buf[:whole], uint64(first)); err != nil {
		return 0, err
	}

	n = copy(p, buf[off-first*ss:min(int64(whole), end-first*ss)])
	if off+int64(n) >= x.size {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the volume size in bytes.
func (x *ReaderAt) Size() int64 {
	return x.size
}

// WriterAt encrypts whole sectors on write.
type WriterAt struct {
	w    io.WriterAt
	c    *Cipher
	size int64
}

// NewWriterAt returns a WriterAt over w, which holds size bytes of ciphertext.
func NewWriterAt(w io.WriterAt, c *Cipher, size int64) *WriterAt {
	return &WriterAt{w: w, c: c, size: size}
}

// WriteAt encrypts p and writes it at off. Both off and len(p) must be multiples of the sector size.
// p is not modified. Sectors past the end of the volume are not written and the short count is
// returned with io.ErrShortWrite.
func (x *WriterAt) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= x.size {
		return 0, io.ErrShortWrite
	}

	ss := int64(x.c.sectorSize)
	if off%ss != 0 {
		return 0, fmt.Errorf("kalyna/xts: write offset %d not sector-aligned (sector size %d)", off, ss)
	}
	if int64(len(p))%ss != 0 {
		return 0, fmt.Errorf("kalyna/xts: write length %d not a multiple of sector size %d", len(p), ss)
	}

	buf := make([]byte, min(int64(len(p)), x.size-off))
	copy(buf, p)
	if err := x.c.EncryptSectors(buf, uint64(off/ss)); err != nil {
		return 0, err
	}
	n, err := x.w.WriteAt(buf, off)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Size returns the volume size in bytes.
func (x *WriterAt) Size() int64 {
	return x.size
}
