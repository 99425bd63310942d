// Package image implements the WeChat "dat" image codec: the V3
// whole-file XOR scheme and the two V4 variants that combine an
// AES-128-ECB header segment with an XOR-encrypted tail. All
// functions here are pure: no global state, no file I/O.
package image

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"

	"github.com/sjzar/wx4dec/internal/errors"
)

// Version identifies which dat encoding a file uses.
type Version int

const (
	VersionUnknown Version = iota
	VersionV3
	VersionV4v1
	VersionV4v2
)

var (
	sigV4v1 = []byte{0x07, 0x08, 0x56, 0x31, 0x08, 0x07}
	sigV4v2 = []byte{0x07, 0x08, 0x56, 0x32, 0x08, 0x07}
)

// headerSize is the fixed V4 header layout: 6-byte signature,
// little-endian u32 AES segment size, little-endian u32 XOR segment
// size, 1 reserved byte.
const headerSize = 15

// HeaderSize exports headerSize for callers that need to slice out a
// sample AES block (e.g. for ValidateImageKey) before calling DecryptV4.
const HeaderSize = headerSize

// magic is a known decrypted-image signature used both to identify
// the output format and, via DetectXorKey, to recover an unknown V3
// XOR key.
type magic struct {
	ext   string
	bytes []byte
}

var knownMagics = []magic{
	{"jpg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"bmp", []byte{0x42, 0x4D}},
}

// webpPrefix and webpTag match WEBP's "RIFF????WEBP" container: bytes 0-3 are
// "RIFF", bytes 8-11 are "WEBP", with a 4-byte size field between
// that DetectXorKey must not constrain.
var webpPrefix = []byte("RIFF")
var webpTag = []byte("WEBP")

// DetectVersion inspects a dat file's leading bytes and reports which
// codec produced it. Any signature other than the two known V4
// variants is treated as V3; an actually-unsupported version surfaces
// later as UnsupportedVersion once decoding fails to find a known
// image magic, rather than being rejected here.
func DetectVersion(data []byte) Version {
	if len(data) >= len(sigV4v1) && bytes.Equal(data[:len(sigV4v1)], sigV4v1) {
		return VersionV4v1
	}
	if len(data) >= len(sigV4v2) && bytes.Equal(data[:len(sigV4v2)], sigV4v2) {
		return VersionV4v2
	}
	return VersionV3
}

// DecryptV3 reverses the single-byte XOR applied to the whole file
// and returns the plaintext image bytes with its detected extension.
func DecryptV3(data []byte, xorKey byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.CorruptInput("dat file is empty")
	}

	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ xorKey
	}

	ext := identify(out)
	if ext == "" {
		return nil, "", errors.UnsupportedVersion(data[:min(len(data), 6)])
	}
	return out, ext, nil
}

// DecryptV4 reverses the V4 encoding: an AES-128-ECB (PKCS7-padded)
// leading segment sized by the header, an untouched middle segment,
// and an XOR-encrypted tail. aesKey must be 16 bytes; xorKey is the
// single byte applied to the tail. aesSize, read from the header, is
// the logical (unpadded) segment length; it is not itself validated
// against the ciphertext length beyond the bounds checks below, so a
// corrupt header can still produce a BadPadding error downstream
// rather than failing at the point the bad value is read.
func DecryptV4(data []byte, aesKey []byte, xorKey byte) ([]byte, string, error) {
	if len(data) < headerSize {
		return nil, "", errors.HeaderOutOfRange("file shorter than v4 header")
	}
	if len(aesKey) != 16 {
		return nil, "", errors.CryptoFailure(nil)
	}

	aesSize := binary.LittleEndian.Uint32(data[6:10])
	xorSize := binary.LittleEndian.Uint32(data[10:14])

	body := data[headerSize:]
	bodyLen := uint32(len(body))

	// PKCS7 always appends a full block of padding, even when aesSize is
	// already block-aligned, so the on-disk ciphertext is one block
	// longer than aesSize's own block count.
	aesBlockLen := aesSize/16*16 + 16
	if aesBlockLen > bodyLen {
		return nil, "", errors.HeaderOutOfRange("aes segment exceeds file size")
	}
	if xorSize > bodyLen || aesBlockLen > bodyLen-xorSize {
		return nil, "", errors.HeaderOutOfRange("xor segment overlaps aes segment")
	}

	aesPlain, err := decryptAESECB(body[:aesBlockLen], aesKey)
	if err != nil {
		return nil, "", err
	}
	if uint32(len(aesPlain)) < aesSize {
		return nil, "", errors.BadPadding()
	}

	var out []byte
	out = append(out, aesPlain[:aesSize]...)

	middleEnd := bodyLen - xorSize
	out = append(out, body[aesBlockLen:middleEnd]...)

	if xorSize > 0 {
		tail := body[middleEnd:]
		xored := make([]byte, len(tail))
		for i, b := range tail {
			xored[i] = b ^ xorKey
		}
		out = append(out, xored...)
	}

	ext := identify(out)
	if ext == "" {
		return nil, "", errors.UnsupportedVersion(out[:min(len(out), 6)])
	}
	return out, ext, nil
}

// AutoDecrypt detects the dat version and dispatches to the matching
// decoder. v4v1Key is the AES key for V4-v1 files (a fixed, publicly
// known key; see FixedV4v1Key) and v4v2Key the one for V4-v2 files;
// only the key matching the detected version is used, and neither is
// consulted for V3.
func AutoDecrypt(data []byte, v4v1Key, v4v2Key []byte, xorKey byte) ([]byte, string, error) {
	switch DetectVersion(data) {
	case VersionV4v1:
		return DecryptV4(data, v4v1Key, xorKey)
	case VersionV4v2:
		return DecryptV4(data, v4v2Key, xorKey)
	default:
		return DecryptV3(data, xorKey)
	}
}

// DetectXorKey recovers a V3 XOR key by brute-forcing every candidate
// byte 0-255, XORing the file's first 16 bytes with it, and checking
// the result against known image magic numbers. Returns false if no
// candidate produces a recognized signature.
func DetectXorKey(data []byte) (byte, bool) {
	if len(data) < 16 {
		return 0, false
	}
	head := data[:16]

	for key := 0; key < 256; key++ {
		candidate := make([]byte, 16)
		for i, b := range head {
			candidate[i] = b ^ byte(key)
		}
		if identify(candidate) != "" {
			return byte(key), true
		}
	}
	return 0, false
}

// identify reports the file extension matching data's leading bytes,
// or "" if none of the known magics match.
func identify(data []byte) string {
	for _, m := range knownMagics {
		if len(data) >= len(m.bytes) && bytes.Equal(data[:len(m.bytes)], m.bytes) {
			return m.ext
		}
	}
	if len(data) >= 12 && bytes.Equal(data[:4], webpPrefix) && bytes.Equal(data[8:12], webpTag) {
		return "webp"
	}
	return ""
}

func decryptAESECB(data, key []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.CorruptInput("aes segment is not block-aligned")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.CreateCipherFailed(err)
	}

	out := make([]byte, len(data))
	for off := 0; off < len(data); off += aes.BlockSize {
		block.Decrypt(out[off:off+aes.BlockSize], data[off:off+aes.BlockSize])
	}

	return unpadPKCS7(out)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	padding := int(data[len(data)-1])
	if padding <= 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, errors.BadPadding()
	}
	for i := len(data) - padding; i < len(data); i++ {
		if data[i] != byte(padding) {
			return nil, errors.BadPadding()
		}
	}
	return data[:len(data)-padding], nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
