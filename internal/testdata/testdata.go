// Package testdata provides deterministic pseudorandom data for tests.
package testdata

import "crypto/sha3"

// DRBG is a SHAKE128-based deterministic random bit generator.
type DRBG struct {
	h *sha3.SHAKE
}

// New returns a DRBG seeded with the given domain string.
func New(domain string) *DRBG {
	h := sha3.NewSHAKE128()
	_, _ = h.Write([]byte(domain))
	return &DRBG{h: h}
}

// Data returns the next n bytes of output.
func (d *DRBG) Data(n int) []byte {
	b := make([]byte, n)
	_, _ = d.h.Read(b)
	return b
}

// Read fills b with output. It never fails.
func (d *DRBG) Read(b []byte) (int, error) {
	return d.h.Read(b)
}
