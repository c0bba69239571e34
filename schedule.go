package kalyna

import (
	"math/bits"

	"github.com/codahale/kalyna/internal/words"
)

// expandKey derives the encryption and decryption round keys.
func (c *Cipher) expandKey(key []byte) {
	n := c.n
	bs := 8 * n
	doubled := len(key) == 2*bs
	l := bits.TrailingZeros(uint(n))

	x := 6 + 4*l
	r := 4 + 2*l
	if doubled {
		x += 4
		r += 2
	}
	c.rounds = x - 1
	c.glOffset = x * n

	var kbuf [2 * maxWords]uint64
	k := kbuf[:len(key)/8]
	words.Load(k, key)

	var t1b, t2b, ksb, kscb [maxWords]uint64
	t1, t2, ks, ksc := t1b[:n], t2b[:n], ksb[:n], kscb[:n]

	// Intermediate key.
	t1[0] = uint64(2*n + 1)
	ka, kb := k[:n], k[:n]
	if doubled {
		t1[0] = uint64(2*n + 2*l + 1)
		kb = k[n:]
	}
	add(t2, t1, ka)
	g(t1, t2, kb)
	gl(t2, t1, ka)
	g0(ks, t2)

	rk := make([]uint64, r*2*n)
	tmv := uint64(0x0001000100010001)
	var even, rot [8 * maxWords]byte
	for i := range r {
		if i > 0 && (!doubled || i%2 == 0) {
			first := k[0]
			copy(k, k[1:])
			k[len(k)-1] = first
		}

		src := k[:n]
		if doubled && i%2 == 1 {
			src = k[n:]
		}

		for w := range ksc {
			ksc[w] = ks[w] + tmv
		}
		add(t2, src, ksc)
		g(t1, t2, ksc)
		off := i * 2 * n
		gl(rk[off:off+n], t1, ksc)

		// The odd round key is the even one rotated by 2n+3 bytes.
		if i < r-1 {
			o := 2*n + 3
			words.Store(even[:bs], rk[off:off+n])
			copy(rot[:], even[o:bs])
			copy(rot[bs-o:], even[:o])
			words.Load(rk[off+n:off+2*n], rot[:bs])
		}

		tmv <<= 1
	}

	c.erk = rk
	c.drk = make([]uint64, len(rk))
	copy(c.drk, rk)
	for i := (2*r - 3) * n; i > 0; i -= n {
		imc(c.drk[i : i+n])
	}
}
