package page

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"testing"

	"github.com/sjzar/wx4dec/internal/errors"
)

// buildPage constructs a single authenticated page the way the V4
// format would encode it, so DecryptPage can be exercised without a
// real database file.
func buildPage(t *testing.T, sub Subkeys, pageNum int64, plaintext []byte) []byte {
	t.Helper()

	offset := 0
	if pageNum == 0 {
		offset = SaltSize
	}
	if len(plaintext) != PageSize-ReserveSize-offset {
		t.Fatalf("plaintext length %d does not match expected body size", len(plaintext))
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	block, err := aes.NewCipher(sub.EncKey)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	body := make([]byte, len(plaintext))
	copy(body, plaintext)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, body)

	page := make([]byte, PageSize)
	copy(page[offset:], body)
	copy(page[PageSize-ReserveSize:], iv)

	end := dataEnd()
	mac := hmac.New(sha512.New, sub.MacKey)
	mac.Write(page[offset:end])
	var pageNo [4]byte
	binary.LittleEndian.PutUint32(pageNo[:], uint32(pageNum+1))
	mac.Write(pageNo[:])
	copy(page[end:end+HMACSize], mac.Sum(nil)[:HMACSize])

	if offset == SaltSize {
		copy(page[:SaltSize], []byte("0123456789abcdef"))
	}

	return page
}

func TestDeriveSubkeysDeterministic(t *testing.T) {
	masterKey := make([]byte, KeySize)
	salt := []byte("0123456789abcdef")

	a, err := DeriveSubkeys(masterKey, salt)
	if err != nil {
		t.Fatalf("DeriveSubkeys: %v", err)
	}
	b, err := DeriveSubkeys(masterKey, salt)
	if err != nil {
		t.Fatalf("DeriveSubkeys: %v", err)
	}

	if string(a.EncKey) != string(b.EncKey) || string(a.MacKey) != string(b.MacKey) {
		t.Fatalf("DeriveSubkeys is not deterministic for identical inputs")
	}
	if string(a.EncKey) == string(a.MacKey) {
		t.Fatalf("enc key and mac key must differ")
	}
}

func TestDeriveSubkeysRejectsBadLengths(t *testing.T) {
	if _, err := DeriveSubkeys(make([]byte, 16), make([]byte, SaltSize)); err == nil {
		t.Fatalf("expected error for short master key")
	}
	if _, err := DeriveSubkeys(make([]byte, KeySize), make([]byte, 4)); err == nil {
		t.Fatalf("expected error for short salt")
	}
}

func TestDecryptPageRoundTrip(t *testing.T) {
	masterKey := make([]byte, KeySize)
	for i := range masterKey {
		masterKey[i] = byte(i)
	}
	salt := []byte("0123456789abcdef")
	sub, err := DeriveSubkeys(masterKey, salt)
	if err != nil {
		t.Fatalf("DeriveSubkeys: %v", err)
	}

	plaintext := make([]byte, PageSize-ReserveSize-SaltSize)
	for i := range plaintext {
		plaintext[i] = byte(i % 251)
	}

	page0 := buildPage(t, sub, 0, plaintext)

	ok, err := ValidateFirstPage(page0, masterKey)
	if err != nil {
		t.Fatalf("ValidateFirstPage: %v", err)
	}
	if !ok {
		t.Fatalf("ValidateFirstPage returned false for correctly keyed page")
	}

	decrypted, err := DecryptPage(page0, sub, 0)
	if err != nil {
		t.Fatalf("DecryptPage: %v", err)
	}
	if string(decrypted[:len(plaintext)]) != string(plaintext) {
		t.Fatalf("decrypted body does not match original plaintext")
	}
	if len(decrypted) != PageSize-SaltSize {
		t.Fatalf("decrypted page has unexpected length %d", len(decrypted))
	}
}

func TestValidateFirstPageRejectsWrongKey(t *testing.T) {
	masterKey := make([]byte, KeySize)
	wrongKey := make([]byte, KeySize)
	wrongKey[0] = 1

	salt := []byte("0123456789abcdef")
	sub, err := DeriveSubkeys(masterKey, salt)
	if err != nil {
		t.Fatalf("DeriveSubkeys: %v", err)
	}

	plaintext := make([]byte, PageSize-ReserveSize-SaltSize)
	page0 := buildPage(t, sub, 0, plaintext)

	ok, err := ValidateFirstPage(page0, wrongKey)
	if err != nil {
		t.Fatalf("ValidateFirstPage: %v", err)
	}
	if ok {
		t.Fatalf("ValidateFirstPage accepted an incorrect key")
	}
}

func TestDecryptPageDetectsMacMismatch(t *testing.T) {
	masterKey := make([]byte, KeySize)
	salt := []byte("0123456789abcdef")
	sub, err := DeriveSubkeys(masterKey, salt)
	if err != nil {
		t.Fatalf("DeriveSubkeys: %v", err)
	}

	plaintext := make([]byte, PageSize-ReserveSize)
	page := buildPage(t, sub, 3, plaintext)
	page[0] ^= 0xff // corrupt ciphertext, MAC should no longer match

	_, err = DecryptPage(page, sub, 3)
	if err == nil {
		t.Fatalf("expected mac mismatch error")
	}
	if !errors.Is(err, errors.KindMacMismatch) {
		t.Fatalf("expected KindMacMismatch, got %v", errors.Kind(err))
	}
}

func TestDecryptPageRejectsShortBuffer(t *testing.T) {
	sub := Subkeys{EncKey: make([]byte, KeySize), MacKey: make([]byte, KeySize)}
	_, err := DecryptPage(make([]byte, 100), sub, 1)
	if !errors.Is(err, errors.KindCorruptInput) {
		t.Fatalf("expected KindCorruptInput, got %v", errors.Kind(err))
	}
}
