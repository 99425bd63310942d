package database

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sjzar/wx4dec/internal/decrypt/page"
	"github.com/sjzar/wx4dec/internal/errors"
)

// writeFixtureDB builds a minimal encrypted database of pageCount
// pages at path, keyed by masterKey, so the pipeline can be exercised
// end to end without a real WeChat export.
func writeFixtureDB(t *testing.T, path string, masterKey []byte, pageCount int) [][]byte {
	t.Helper()

	salt := []byte("fixture-salt-16b")
	sub, err := page.DeriveSubkeys(masterKey, salt)
	if err != nil {
		t.Fatalf("DeriveSubkeys: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("os.Create: %v", err)
	}
	defer f.Close()

	plaintexts := make([][]byte, pageCount)

	for i := 0; i < pageCount; i++ {
		offset := 0
		if i == 0 {
			offset = page.SaltSize
		}
		body := make([]byte, page.PageSize-page.ReserveSize-offset)
		for j := range body {
			body[j] = byte((i*7 + j) % 251)
		}
		plaintexts[i] = body

		iv := make([]byte, page.IVSize)
		for j := range iv {
			iv[j] = byte(i + j)
		}

		block, err := aes.NewCipher(sub.EncKey)
		if err != nil {
			t.Fatalf("aes.NewCipher: %v", err)
		}
		cipherBody := make([]byte, len(body))
		copy(cipherBody, body)
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherBody, cipherBody)

		buf := make([]byte, page.PageSize)
		copy(buf[offset:], cipherBody)
		copy(buf[page.PageSize-page.ReserveSize:], iv)

		end := page.PageSize - page.ReserveSize + page.IVSize
		mac := hmac.New(sha512.New, sub.MacKey)
		mac.Write(buf[offset:end])
		var pageNo [4]byte
		binary.LittleEndian.PutUint32(pageNo[:], uint32(i+1))
		mac.Write(pageNo[:])
		copy(buf[end:end+page.HMACSize], mac.Sum(nil)[:page.HMACSize])

		if i == 0 {
			copy(buf[:page.SaltSize], salt)
		}

		if _, err := f.Write(buf); err != nil {
			t.Fatalf("write page %d: %v", i, err)
		}
	}

	return plaintexts
}

func TestDecryptDatabaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.db")
	out := filepath.Join(dir, "out.db")

	masterKey := make([]byte, page.KeySize)
	for i := range masterKey {
		masterKey[i] = byte(i * 3)
	}

	plaintexts := writeFixtureDB(t, in, masterKey, 3)

	var progressed []int64
	stats, err := DecryptDatabase(context.Background(), in, out, masterKey, Options{
		Progress: func(p, total int64) { progressed = append(progressed, p) },
	})
	if err != nil {
		t.Fatalf("DecryptDatabase: %v", err)
	}
	if stats.TotalPages != 3 || stats.DecryptedPages != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// Progress fires on page 0 and on the final page; rate-limiting
	// skips the pages in between.
	if len(progressed) != 2 || progressed[0] != 0 || progressed[len(progressed)-1] != 2 {
		t.Fatalf("unexpected progress callback sequence: %v", progressed)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != page.PageSize*3 {
		t.Fatalf("unexpected output size: %d", len(got))
	}
	if string(got[:len(page.SQLiteHeader)]) != page.SQLiteHeader {
		t.Fatalf("output does not start with sqlite header")
	}

	// Page 0 body immediately follows the header, replacing the salt.
	body0 := got[len(page.SQLiteHeader) : page.PageSize-page.ReserveSize]
	if string(body0) != string(plaintexts[0]) {
		t.Fatalf("page 0 plaintext mismatch")
	}
}

func TestDecryptDatabaseRejectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.db")
	out := filepath.Join(dir, "out.db")

	masterKey := make([]byte, page.KeySize)
	writeFixtureDB(t, in, masterKey, 1)

	wrongKey := make([]byte, page.KeySize)
	wrongKey[0] = 0xff

	_, err := DecryptDatabase(context.Background(), in, out, wrongKey, Options{})
	if !errors.Is(err, errors.KindInvalidKey) {
		t.Fatalf("expected KindInvalidKey, got %v", errors.Kind(err))
	}
	if _, statErr := os.Stat(out); statErr == nil {
		t.Fatalf("output file should not exist after failed decrypt")
	}
}

func TestDecryptDatabaseSkipValidationSurfacesMacMismatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.db")
	out := filepath.Join(dir, "out.db")

	masterKey := make([]byte, page.KeySize)
	writeFixtureDB(t, in, masterKey, 1)

	wrongKey := make([]byte, page.KeySize)
	wrongKey[0] = 0xff

	_, err := DecryptDatabase(context.Background(), in, out, wrongKey, Options{SkipValidation: true})
	if !errors.Is(err, errors.KindMacMismatch) {
		t.Fatalf("expected KindMacMismatch, got %v", errors.Kind(err))
	}
}

func TestDecryptDatabaseRejectsAlreadyDecrypted(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "plain.db")
	out := filepath.Join(dir, "out.db")

	buf := make([]byte, page.PageSize)
	copy(buf, []byte(page.SQLiteHeader))
	if err := os.WriteFile(in, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := DecryptDatabase(context.Background(), in, out, make([]byte, page.KeySize), Options{})
	if !errors.Is(err, errors.KindAlreadyDecrypted) {
		t.Fatalf("expected KindAlreadyDecrypted, got %v", errors.Kind(err))
	}
}

func TestGetDatabaseInfo(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.db")
	masterKey := make([]byte, page.KeySize)
	writeFixtureDB(t, in, masterKey, 2)

	info, err := GetDatabaseInfo(in)
	if err != nil {
		t.Fatalf("GetDatabaseInfo: %v", err)
	}
	if info.TotalPages != 2 || info.PageSize != page.PageSize {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !info.IsEncrypted {
		t.Fatalf("expected IsEncrypted true for an encrypted fixture")
	}
	if len(info.Salt) != page.SaltSize {
		t.Fatalf("expected a %d-byte salt, got %d", page.SaltSize, len(info.Salt))
	}
}

func TestGetDatabaseInfoPlaintext(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "plain.db")

	buf := make([]byte, page.PageSize*2)
	copy(buf, []byte(page.SQLiteHeader))
	if err := os.WriteFile(in, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := GetDatabaseInfo(in)
	if err != nil {
		t.Fatalf("GetDatabaseInfo: %v", err)
	}
	if info.IsEncrypted {
		t.Fatalf("expected IsEncrypted false for a plaintext file")
	}
	if info.Salt != nil {
		t.Fatalf("expected nil salt for a plaintext file, got %x", info.Salt)
	}
	if info.TotalPages != 2 {
		t.Fatalf("unexpected page count: %+v", info)
	}
}

func TestValidateKey(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.db")
	masterKey := make([]byte, page.KeySize)
	writeFixtureDB(t, in, masterKey, 1)

	ok, err := ValidateKey(in, masterKey)
	if err != nil {
		t.Fatalf("ValidateKey: %v", err)
	}
	if !ok {
		t.Fatalf("ValidateKey returned false for correct key")
	}

	wrongKey := make([]byte, page.KeySize)
	wrongKey[0] = 1
	ok, err = ValidateKey(in, wrongKey)
	if err != nil {
		t.Fatalf("ValidateKey: %v", err)
	}
	if ok {
		t.Fatalf("ValidateKey returned true for wrong key")
	}
}
