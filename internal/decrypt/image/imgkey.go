package image

import (
	"bytes"
	"crypto/aes"
)

// FixedV4v1Key is the publicly known AES-128 key WeChat uses for the
// V4-v1 dat signature. It is not a secret: every WeChat v4 install
// uses the same 16 ASCII bytes.
var FixedV4v1Key = []byte("cfcd208495d565ef")

// ValidateImageKey reports whether key correctly decrypts the first
// AES block of a V4-v2 dat file's header segment into a recognizable
// image signature. Callers locate a sample encrypted block (the 16
// bytes starting at offset 15 of any *.dat file matching the V4-v2
// signature) and pass it here; this function performs no file I/O
// itself.
func ValidateImageKey(sampleAESBlock []byte, key []byte) bool {
	if len(sampleAESBlock) != aes.BlockSize || len(key) != 16 {
		return false
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return false
	}

	decrypted := make([]byte, aes.BlockSize)
	block.Decrypt(decrypted, sampleAESBlock)

	for _, m := range knownMagics {
		if len(decrypted) >= len(m.bytes) && bytes.Equal(decrypted[:len(m.bytes)], m.bytes) {
			return true
		}
	}
	return false
}
