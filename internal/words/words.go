// Package words converts between byte strings and little-endian 64-bit words.
package words

import "encoding/binary"

// Load decodes len(dst) little-endian words from src.
func Load(dst []uint64, src []byte) {
	_ = src[8*len(dst)-1]
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(src[8*i:])
	}
}

// Store encodes src into dst as little-endian words.
func Store(dst []byte, src []uint64) {
	_ = dst[8*len(src)-1]
	for i, w := range src {
		binary.LittleEndian.PutUint64(dst[8*i:], w)
	}
}
