// Package modes implements the unauthenticated DSTU 7624:2014 modes which have no counterpart in
// crypto/cipher: electronic codebook (ECB) and cipher feedback with the standard's gamma update
// (CFB).
//
// CBC and OFB are identical to the crypto/cipher implementations and are not repeated here.
package modes

import "crypto/cipher"

type ecb struct {
	b       cipher.Block
	decrypt bool
}

// NewECBEncrypter returns a cipher.BlockMode which encrypts each block independently with b.
func NewECBEncrypter(b cipher.Block) cipher.BlockMode {
	return &ecb{b: b}
}

// NewECBDecrypter returns a cipher.BlockMode which decrypts each block independently with b.
func NewECBDecrypter(b cipher.Block) cipher.BlockMode {
	return &ecb{b: b, decrypt: true}
}

func (e *ecb) BlockSize() int {
	return e.b.BlockSize()
}

func (e *ecb) CryptBlocks(dst, src []byte) {
	bs := e.b.BlockSize()
	if len(src)%bs != 0 {
		panic("kalyna/modes: input not full blocks")
	}
	if len(dst) < len(src) {
		panic("kalyna/modes: output smaller than input")
	}

	for i := 0; i < len(src); i += bs {
		if e.decrypt {
			e.b.Decrypt(dst[i:i+bs], src[i:i+bs])
		} else {
			e.b.Encrypt(dst[i:i+bs], src[i:i+bs])
		}
	}
}

var _ cipher.BlockMode = (*ecb)(nil)
