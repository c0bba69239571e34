// Package padding implements the bit padding used throughout DSTU 7624: a single 0x80 byte followed
// by zeros up to the next block boundary. Data that already fills whole blocks is left as is.
package padding

import "errors"

// ErrInvalidPadding is returned by Unpad when data does not end in valid padding.
var ErrInvalidPadding = errors.New("kalyna/padding: invalid padding")

// Pad returns data padded to a multiple of blockSize. If data is already aligned it is returned
// unchanged; otherwise a new slice is returned.
func Pad(data []byte, blockSize int) []byte {
	r := len(data) % blockSize
	if r == 0 {
		return data
	}

	out := make([]byte, len(data)+blockSize-r)
	copy(out, data)
	out[len(data)] = 0x80
	return out
}

// Unpad removes the padding from data, which must be a non-empty multiple of blockSize ending in
// 0x80 followed by fewer than blockSize zeros. Since Pad leaves aligned data untouched, Unpad is only
// meaningful for data known to have been padded. The returned slice aliases data.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}

	i := len(data) - 1
	for i >= 0 && data[i] == 0 {
		i--
	}
	if i < 0 || data[i] != 0x80 || len(data)-i > blockSize {
		return nil, ErrInvalidPadding
	}
	return data[:i], nil
}
