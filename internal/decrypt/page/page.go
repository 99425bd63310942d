// Package page implements the WeChat V4 SQLite page codec: subkey
// derivation and per-page authenticated decryption. It holds no file
// I/O and no global state; everything a caller needs travels through
// function arguments and return values.
package page

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"github.com/sjzar/wx4dec/internal/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize      = 32
	SaltSize     = 16
	PageSize     = 4096
	IVSize       = 16
	HMACSize     = 20
	ReserveSize  = 48
	EncIterCount = 256000
	MacIterCount = 2
	SQLiteHeader = "SQLite format 3\x00"
)

// macKeyXorByte is XORed into the salt before deriving the mac key, per
// the V4 format's key-separation step.
const macKeyXorByte = 0x3a

// Subkeys holds the two keys derived from the master key and the
// per-database salt: one for AES-256-CBC, one for HMAC-SHA512.
type Subkeys struct {
	EncKey []byte
	MacKey []byte
}

// DeriveSubkeys derives the encryption and MAC keys from the 32-byte
// master key and the 16-byte salt taken from the start of page 0.
//
//	encKey = PBKDF2-HMAC-SHA512(masterKey, salt, 256000, 32)
//	macKey = PBKDF2-HMAC-SHA512(encKey, salt XOR 0x3a, 2, 32)
func DeriveSubkeys(masterKey, salt []byte) (Subkeys, error) {
	if len(masterKey) != KeySize {
		return Subkeys{}, errors.CryptoFailure(nil)
	}
	if len(salt) != SaltSize {
		return Subkeys{}, errors.CorruptInput("salt must be 16 bytes")
	}

	encKey := pbkdf2.Key(masterKey, salt, EncIterCount, KeySize, sha512.New)

	macSalt := make([]byte, SaltSize)
	for i, b := range salt {
		macSalt[i] = b ^ macKeyXorByte
	}
	macKey := pbkdf2.Key(encKey, macSalt, MacIterCount, KeySize, sha512.New)

	return Subkeys{EncKey: encKey, MacKey: macKey}, nil
}

// dataEnd returns the offset at which the unauthenticated reserved
// trailer begins, relative to a page buffer's start.
func dataEnd() int {
	return PageSize - ReserveSize + IVSize
}

// ValidateFirstPage reports whether masterKey decrypts page 0's MAC
// tag correctly, without performing the AES decryption. It is used to
// fail fast on a wrong key before committing to a full pass.
func ValidateFirstPage(page0 []byte, masterKey []byte) (bool, error) {
	if len(page0) != PageSize {
		return false, errors.CorruptInput("page 0 is not a full page")
	}

	salt := page0[:SaltSize]
	sub, err := DeriveSubkeys(masterKey, salt)
	if err != nil {
		return false, err
	}

	end := dataEnd()
	mac := hmac.New(sha512.New, sub.MacKey)
	mac.Write(page0[SaltSize:end])

	var pageNo [4]byte
	binary.LittleEndian.PutUint32(pageNo[:], 1)
	mac.Write(pageNo[:])

	got := mac.Sum(nil)[:HMACSize]
	want := page0[end : end+HMACSize]

	return hmac.Equal(got, want), nil
}

// DecryptPage authenticates and decrypts a single 4096-byte page.
// pageNum is 0-based; the MAC is computed over the 1-based page
// number per the on-disk format, and a MacMismatch error reports that
// same 1-based number so callers can compare it directly against the
// spec's "page 1" language. Page 0 carries a 16-byte salt prefix that
// is excluded from the ciphertext region and left out of the returned
// bytes; the caller writes the SQLite header in its place.
//
// The MAC is checked in constant time via hmac.Equal before any AES
// decryption takes place, so a mismatched tag never reaches the
// cipher.
func DecryptPage(pageBuf []byte, sub Subkeys, pageNum int64) ([]byte, error) {
	if len(pageBuf) != PageSize {
		return nil, errors.CorruptInput("page is not a full page")
	}

	offset := 0
	if pageNum == 0 {
		offset = SaltSize
	}

	end := dataEnd()

	mac := hmac.New(sha512.New, sub.MacKey)
	mac.Write(pageBuf[offset:end])

	var pageNo [4]byte
	binary.LittleEndian.PutUint32(pageNo[:], uint32(pageNum+1))
	mac.Write(pageNo[:])

	got := mac.Sum(nil)[:HMACSize]
	want := pageBuf[end : end+HMACSize]

	if !hmac.Equal(got, want) {
		return nil, errors.MacMismatch(pageNum + 1)
	}

	iv := pageBuf[PageSize-ReserveSize : end]

	block, err := aes.NewCipher(sub.EncKey)
	if err != nil {
		return nil, errors.CreateCipherFailed(err)
	}
	mode := cipher.NewCBCDecrypter(block, iv)

	body := make([]byte, PageSize-ReserveSize-offset)
	copy(body, pageBuf[offset:PageSize-ReserveSize])
	mode.CryptBlocks(body, body)

	out := make([]byte, 0, PageSize-offset)
	out = append(out, body...)
	out = append(out, pageBuf[PageSize-ReserveSize:PageSize]...)

	return out, nil
}
