package kalyna

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/codahale/kalyna/internal/testdata"
)

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func TestKnownAnswers(t *testing.T) {
	for _, tc := range []struct {
		name       string
		blockSize  int
		key        []byte
		plaintext  []byte
		ciphertext string
	}{
		{"128/128", BlockSize128, seq(0x00, 16), seq(0x10, 16), "81bf1c7d779bac20e1c9ea39b4d2ad06"},
		{"128/256", BlockSize128, seq(0x00, 32), seq(0x20, 16), "58ec3e091000158a1148f7166f334f14"},
		{
			"256/256", BlockSize256, seq(0x00, 32), seq(0x20, 32),
			"f66e3d570ec92135aedae323dcbd2a8ca03963ec206a0d5a88385c24617fd92c",
		},
		{
			"256/512", BlockSize256, seq(0x00, 64), seq(0x40, 32),
			"606990e9e6b7b67a4bd6d893d72268b78e02c83c3cd7e102fd2e74a8fdfe5dd9",
		},
		{
			"512/512", BlockSize512, seq(0x00, 64), seq(0x40, 64),
			"4a26e31b811c356aa61dd6ca0596231a67ba8354aa47f3a13e1deec320eb56b8" +
				"95d0f417175bab662fd6f134bb15c86ccb906a26856efeb7c5bc6472940dd9d9",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCipher(tc.blockSize, tc.key)
			if err != nil {
				t.Fatal(err)
			}

			ct, err := c.EncryptBlock(tc.plaintext)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := hex.EncodeToString(ct), tc.ciphertext; got != want {
				t.Errorf("EncryptBlock(%x) = %s, want = %s", tc.plaintext, got, want)
			}

			pt, err := c.DecryptBlock(ct)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := pt, tc.plaintext; !bytes.Equal(got, want) {
				t.Errorf("DecryptBlock(%x) = %x, want = %x", ct, got, want)
			}
		})
	}
}

var configs = []struct {
	name      string
	blockSize int
	keySize   int
}{
	{"128/128", BlockSize128, 16},
	{"128/256", BlockSize128, 32},
	{"256/256", BlockSize256, 32},
	{"256/512", BlockSize256, 64},
	{"512/512", BlockSize512, 64},
	{"512/1024", BlockSize512, 128},
}

func TestRoundTrip(t *testing.T) {
	drbg := testdata.New("kalyna round trip")
	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			c, err := NewCipher(cfg.blockSize, drbg.Data(cfg.keySize))
			if err != nil {
				t.Fatal(err)
			}

			for range 100 {
				pt := drbg.Data(cfg.blockSize)
				ct := make([]byte, cfg.blockSize)
				c.Encrypt(ct, pt)
				if bytes.Equal(ct, pt) {
					t.Fatalf("Encrypt(%x) is the identity", pt)
				}

				got := make([]byte, cfg.blockSize)
				c.Decrypt(got, ct)
				if want := pt; !bytes.Equal(got, want) {
					t.Fatalf("Decrypt(Encrypt(%x)) = %x, want = %x", pt, got, want)
				}
			}
		})
	}
}

func TestInPlace(t *testing.T) {
	c, err := NewCipher(BlockSize256, seq(0, 32))
	if err != nil {
		t.Fatal(err)
	}

	want, _ := c.EncryptBlock(seq(0x20, 32))
	buf := seq(0x20, 32)
	c.Encrypt(buf, buf)
	if got := buf; !bytes.Equal(got, want) {
		t.Errorf("in-place Encrypt = %x, want = %x", got, want)
	}

	c.Decrypt(buf, buf)
	if got, want := buf, seq(0x20, 32); !bytes.Equal(got, want) {
		t.Errorf("in-place Decrypt = %x, want = %x", got, want)
	}
}

func TestNewCipherErrors(t *testing.T) {
	for _, tc := range []struct {
		blockSize, keySize int
		want               error
	}{
		{BlockSize128, 0, ErrInvalidKeyLength},
		{BlockSize128, 24, ErrInvalidKeyLength},
		{BlockSize256, 16, ErrInvalidKeyLength},
		{BlockSize512, 32, ErrInvalidKeyLength},
		{8, 8, ErrUnsupportedBlockSize},
		{24, 24, ErrUnsupportedBlockSize},
	} {
		t.Run(fmt.Sprintf("%d/%d", tc.blockSize, tc.keySize), func(t *testing.T) {
			c, err := NewCipher(tc.blockSize, make([]byte, tc.keySize))
			if c != nil || !errors.Is(err, tc.want) {
				t.Errorf("NewCipher(%d, [%d]byte) = %v, %v, want = nil, %v", tc.blockSize, tc.keySize, c, err, tc.want)
			}
		})
	}
}

func TestBlockLengthErrors(t *testing.T) {
	c, err := NewCipher(BlockSize128, make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, 15, 17, 32} {
		if _, err := c.EncryptBlock(make([]byte, n)); !errors.Is(err, ErrInvalidBlockLength) {
			t.Errorf("EncryptBlock([%d]byte) err = %v, want = %v", n, err, ErrInvalidBlockLength)
		}
		if _, err := c.DecryptBlock(make([]byte, n)); !errors.Is(err, ErrInvalidBlockLength) {
			t.Errorf("DecryptBlock([%d]byte) err = %v, want = %v", n, err, ErrInvalidBlockLength)
		}
	}
}

func TestShortBlockPanics(t *testing.T) {
	c, err := NewCipher(BlockSize128, make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Encrypt with a short input did not panic")
		}
	}()
	c.Encrypt(make([]byte, 16), make([]byte, 8))
}

func TestTables(t *testing.T) {
	for k := range sbox {
		for x := range 256 {
			if got, want := sboxInv[k][sbox[k][x]], byte(x); got != want {
				t.Fatalf("sboxInv[%d][sbox[%d][%#02x]] = %#02x, want = %#02x", k, k, x, got, want)
			}
		}
	}

	// The MDS rows are inverse circulants: their cyclic convolution is the identity.
	for r := range 8 {
		var v byte
		for c := range 8 {
			v ^= gmul(mds[c], mdsInv[(r-c+8)%8])
		}
		want := byte(0)
		if r == 0 {
			want = 1
		}
		if v != want {
			t.Errorf("(mds * mdsInv)[%d] = %#02x, want = %#02x", r, v, want)
		}
	}
}

func TestSchedule(t *testing.T) {
	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			c, err := NewCipher(cfg.blockSize, make([]byte, cfg.keySize))
			if err != nil {
				t.Fatal(err)
			}

			if got, want := len(c.erk), len(c.drk); got != want {
				t.Errorf("len(erk) = %d, len(drk) = %d", got, want)
			}
			if got, want := c.glOffset+c.n, len(c.erk); got > want {
				t.Errorf("final round key ends at word %d, past the schedule length %d", got, want)
			}

			n := c.n
			for _, off := range []int{0, c.glOffset} {
				if got, want := c.drk[off:off+n], c.erk[off:off+n]; !slices.Equal(got, want) {
					t.Errorf("drk[%d:] = %x, want = %x", off, got, want)
				}
			}
		})
	}
}

func FuzzRoundTrip(f *testing.F) {
	drbg := testdata.New("kalyna fuzz")
	for _, cfg := range configs {
		f.Add(drbg.Data(cfg.keySize), drbg.Data(cfg.blockSize))
	}

	f.Fuzz(func(t *testing.T, key, block []byte) {
		c, err := NewCipher(len(block), key)
		if err != nil {
			t.Skip(err)
		}

		ct, err := c.EncryptBlock(block)
		if err != nil {
			t.Fatal(err)
		}
		pt, err := c.DecryptBlock(ct)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := pt, block; !bytes.Equal(got, want) {
			t.Errorf("DecryptBlock(EncryptBlock(%x)) = %x, want = %x", block, got, want)
		}
	})
}

func BenchmarkNewCipher(b *testing.B) {
	for _, cfg := range configs {
		b.Run(cfg.name, func(b *testing.B) {
			key := make([]byte, cfg.keySize)
			b.ReportAllocs()
			for b.Loop() {
				_, _ = NewCipher(cfg.blockSize, key)
			}
		})
	}
}

func BenchmarkEncrypt(b *testing.B) {
	for _, cfg := range configs {
		b.Run(cfg.name, func(b *testing.B) {
			c, _ := NewCipher(cfg.blockSize, make([]byte, cfg.keySize))
			block := make([]byte, cfg.blockSize)
			b.ReportAllocs()
			b.SetBytes(int64(len(block)))
			for b.Loop() {
				c.Encrypt(block, block)
			}
		})
	}
}

func BenchmarkDecrypt(b *testing.B) {
	for _, cfg := range configs {
		b.Run(cfg.name, func(b *testing.B) {
			c, _ := NewCipher(cfg.blockSize, make([]byte, cfg.keySize))
			block := make([]byte, cfg.blockSize)
			b.ReportAllocs()
			b.SetBytes(int64(len(block)))
			for b.Loop() {
				c.Decrypt(block, block)
			}
		})
	}
}
