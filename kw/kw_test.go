package kw

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/codahale/kalyna"
	"github.com/codahale/kalyna/internal/testdata"
	fuzz "github.com/trailofbits/go-fuzz-utils"
)

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func newCipher(t testing.TB, blockSize, keySize int) *kalyna.Cipher {
	t.Helper()
	c, err := kalyna.NewCipher(blockSize, seq(0x00, keySize))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestVectors(t *testing.T) {
	for _, tc := range []struct {
		name               string
		blockSize, keySize int
		n                  int
		want               string
	}{
		{"128/128 aligned", 16, 16, 16, "374ac8319130a70031fa693434dc2895f6214aa0cdca00e574e4f64da24a3df5"},
		{"128/128 20B", 16, 16, 20, "352ef190ed5db66e876c1f02badc5648aa80777bd33e16660b0fec236f82edd3" +
			"65f47cc1f60e2d0eed99b5df7297d749"},
		{"128/128 33B", 16, 16, 33, "d2a517240e145f50273c1cfa827e55f3b8facb53aed9632c41b0c2f83a276efe" +
			"e0322725dba55629501a9d04f886928acc6ba43c0b6753c9b89dea4a54856271"},
		{"128/256 aligned", 16, 32, 16, "86681cbda366aef11b0b3c873f543a4af2e0a9e43ff99e6d1b55881f82d8aa46"},
		{"128/256 20B", 16, 32, 20, "3bd18e6c8e99bdb8e79be43868daa1207e5a5e7f0a3b4816fcf9866219121d38" +
			"4a64d1af7a4bca4fa54eac6cc1129433"},
		{"256/256 aligned", 32, 32, 32, "bb88db1d0a0044e56cb2bd7d3679e15bde12ab7caf12bc372c005186bcb0b063" +
			"c5fefcc695c4fa71042e6d3ef5059c6121fb365fd2de86a91dda8e7fcbe1ac9b"},
		{"256/256 20B", 32, 32, 20, "fc9a4f2e6a9864f43ef548d1c825af10276cb585f04bc5926091dfc25cdf4084" +
			"e0350dbc0ffffa1a06a89c3f4f7aeb7aca01f0faefe42239788791e60a9916a4" +
			"66b1c3a8284e564adbadd7f6bcae6a31fdd3b798ac4fdf839d69c33dcd3c6452"},
		{"256/512 33B", 32, 64, 33, "56b6f30e7bec9d9c6aa63f46f433f013bf51a345c43b281bc0a79b49cf053096" +
			"8c4591fe2a55512d61daffb21871b0c74137a9fbcf16328b02962e3d2cdad420" +
			"8af54a3edb77d1f4fab83c0921884a9482e083ff5a8db22c99365a4bddcaf40e"},
		{"512/512 20B", 64, 64, 20, "5ca4c47a8c4bff661a20fdbe17e2afa00794e044b67a6c6ffc37d724c9d238e6" +
			"5199208611c05416e8f0b8da979181e4d59d7901dcae2a5936347e10aab38588" +
			"e8cd9dde5eae8e4e78bd7fe8836681c1906329ed3e6472530d12484c7507cb7e" +
			"521ae01cb3dcec8d5872c86b175a89b7591421c2782844eed59c62be5eba52c0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newCipher(t, tc.blockSize, tc.keySize)
			km := seq(0xa0, tc.n)

			wrapped, err := Wrap(c, km)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := hex.EncodeToString(wrapped), tc.want; got != want {
				t.Errorf("Wrap(%x) = %s, want = %s", km, got, want)
			}

			unwrapped, err := Unwrap(c, wrapped)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := unwrapped, km; !bytes.Equal(got, want) {
				t.Errorf("Unwrap(Wrap(%x)) = %x, want = %x", km, got, want)
			}
		})
	}
}

func TestLengths(t *testing.T) {
	drbg := testdata.New("kalyna kw lengths")
	for _, bs := range []int{16, 32, 64} {
		c := newCipher(t, bs, bs)
		for n := 1; n <= 3*bs; n++ {
			t.Run(fmt.Sprintf("%d/%d", bs, n), func(t *testing.T) {
				km := drbg.Data(n)

				wrapped, err := Wrap(c, km)
				if err != nil {
					t.Fatal(err)
				}
				if got, want := len(wrapped), WrappedLen(bs, n); got != want {
					t.Errorf("len(Wrap([%d]byte)) = %d, want = %d", n, got, want)
				}
				if len(wrapped) < 2*bs || len(wrapped)%bs != 0 {
					t.Errorf("len(Wrap([%d]byte)) = %d, not a multiple of %d of at least two blocks", n, len(wrapped), bs)
				}

				unwrapped, err := Unwrap(c, wrapped)
				if err != nil {
					t.Fatal(err)
				}
				if got, want := unwrapped, km; !bytes.Equal(got, want) {
					t.Errorf("Unwrap(Wrap(%x)) = %x, want = %x", km, got, want)
				}
			})
		}
	}
}

func TestUnwrapErrors(t *testing.T) {
	c := newCipher(t, 16, 16)

	for _, n := range []int{0, 8, 16, 31, 33, 40} {
		if _, err := Unwrap(c, make([]byte, n)); !errors.Is(err, kalyna.ErrInvalidWrappedKeyLength) {
			t.Errorf("Unwrap([%d]byte) err = %v, want = %v", n, err, kalyna.ErrInvalidWrappedKeyLength)
		}
	}

	wrapped, err := Wrap(c, seq(0xa0, 24))
	if err != nil {
		t.Fatal(err)
	}
	for i := range len(wrapped) {
		bad := bytes.Clone(wrapped)
		bad[i] ^= 0x01
		if got, err := Unwrap(c, bad); !errors.Is(err, kalyna.ErrAuthenticationFailure) {
			t.Fatalf("Unwrap(wrapped with byte %d flipped) = %x, %v, want = %v", i, got, err, kalyna.ErrAuthenticationFailure)
		}
	}

	other := newCipher(t, 16, 32)
	if _, err := Unwrap(other, wrapped); !errors.Is(err, kalyna.ErrAuthenticationFailure) {
		t.Errorf("Unwrap(wrong key) err = %v, want = %v", err, kalyna.ErrAuthenticationFailure)
	}
}

func TestAmbiguousPadding(t *testing.T) {
	c := newCipher(t, 16, 16)
	short, _ := hex.DecodeString("0102030405060708")
	aligned, _ := hex.DecodeString("01020304050607084000000000000000")

	a, err := Wrap(c, short)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Wrap(c, aligned)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("Wrap(%x) = %x, want = Wrap(%x) = %x", short, a, aligned, b)
	}

	got, err := Unwrap(c, b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, short) {
		t.Errorf("Unwrap(Wrap(%x)) = %x, want = %x", aligned, got, short)
	}
}

func TestWrapEmpty(t *testing.T) {
	if _, err := Wrap(newCipher(t, 16, 16), nil); !errors.Is(err, ErrEmptyKeyMaterial) {
		t.Errorf("Wrap(nil) err = %v, want = %v", err, ErrEmptyKeyMaterial)
	}
}

func FuzzRoundTrip(f *testing.F) {
	drbg := testdata.New("kalyna kw fuzz")
	for range 10 {
		f.Add(drbg.Data(200))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		sizeSel, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}
		bs := []int{16, 32, 64}[int(sizeSel)%3]

		key, err := tp.GetBytes()
		if err != nil || len(key) < bs {
			t.Skip(err)
		}
		km, err := tp.GetBytes()
		if err != nil || len(km) == 0 {
			t.Skip(err)
		}

		c, err := kalyna.NewCipher(bs, key[:bs])
		if err != nil {
			t.Fatal(err)
		}

		wrapped, err := Wrap(c, km)
		if err != nil {
			t.Fatal(err)
		}
		unwrapped, err := Unwrap(c, wrapped)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(unwrapped, km) {
			t.Errorf("Unwrap(Wrap(%x)) = %x", km, unwrapped)
		}
	})
}
