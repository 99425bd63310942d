// Package database implements the WeChat V4 SQLite database decrypt
// pipeline: reading an encrypted file page by page, authenticating
// and decrypting each page, and writing a plaintext SQLite file byte
// for byte identical to what the application would have produced
// unencrypted.
package database

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sjzar/wx4dec/internal/decrypt/page"
	"github.com/sjzar/wx4dec/internal/errors"
)

// Info describes a database file without decrypting it.
type Info struct {
	Path       string
	SizeBytes  int64
	PageSize   int
	TotalPages int64
	// IsEncrypted is true iff page 1 does not begin with the literal
	// SQLite header. Salt is only meaningful when this is true.
	IsEncrypted bool
	Salt        []byte
}

// Stats summarizes a completed decrypt run.
type Stats struct {
	TotalPages     int64
	ZeroPages      int64
	DecryptedPages int64
}

// Options controls optional behavior of DecryptDatabase.
type Options struct {
	// SkipValidation skips the page-0 key check and goes straight to
	// per-page decryption. Page 1's MAC failure then surfaces as the
	// first error, same exit class as an upfront invalid-key check.
	SkipValidation bool

	// Progress, if set, is called after a page is written with the
	// 0-based page index just processed and the total page count. It
	// fires on every progressInterval-th page and on the final page,
	// not on every page.
	Progress func(page, total int64)
}

// readFirstPage opens path and returns its size and first page. If
// allowPlaintext is false, a plaintext SQLite header is a hard
// AlreadyDecrypted error. If true, a plaintext file is returned with
// isEncrypted=false and the caller must not treat first as a salt.
func readFirstPage(path string, allowPlaintext bool) (f *os.File, size int64, first []byte, isEncrypted bool, err error) {
	f, err = os.Open(path)
	if err != nil {
		return nil, 0, nil, false, errors.OpenFileFailed(path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, nil, false, errors.StatFileFailed(path, err)
	}
	if info.Size() == 0 || info.Size()%page.PageSize != 0 {
		f.Close()
		return nil, 0, nil, false, errors.CorruptInput("file size is not a non-zero multiple of the page size")
	}

	buf := make([]byte, page.PageSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, 0, nil, false, errors.ReadFileFailed(path, err)
	}
	if n < page.PageSize {
		f.Close()
		return nil, 0, nil, false, errors.IncompleteRead(err)
	}

	if string(buf[:len(page.SQLiteHeader)-1]) == page.SQLiteHeader[:len(page.SQLiteHeader)-1] {
		if allowPlaintext {
			return f, info.Size(), buf, false, nil
		}
		f.Close()
		return nil, 0, nil, false, errors.AlreadyDecrypted()
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, nil, false, errors.StatFileFailed(path, err)
	}

	return f, info.Size(), buf, true, nil
}

// GetDatabaseInfo reads the header of a database file and reports its
// page layout without decrypting anything. It accepts a plaintext
// file too, reporting IsEncrypted false rather than erroring.
func GetDatabaseInfo(path string) (*Info, error) {
	f, size, first, isEncrypted, err := readFirstPage(path, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &Info{
		Path:        path,
		SizeBytes:   size,
		PageSize:    page.PageSize,
		TotalPages:  size / page.PageSize,
		IsEncrypted: isEncrypted,
	}
	if isEncrypted {
		info.Salt = append([]byte(nil), first[:page.SaltSize]...)
	}
	return info, nil
}

// ValidateKey reports whether masterKey correctly decrypts path's
// first page, without writing any output.
func ValidateKey(path string, masterKey []byte) (bool, error) {
	f, _, first, _, err := readFirstPage(path, false)
	if err != nil {
		return false, err
	}
	defer f.Close()

	return page.ValidateFirstPage(first, masterKey)
}

// isZeroPage reports whether buf is entirely zero bytes. SQLite
// occasionally leaves trailing pages unwritten; the V4 format passes
// these through verbatim rather than authenticating them.
func isZeroPage(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// DecryptDatabase decrypts the database at inPath with masterKey and
// writes the plaintext result to outPath. The output is staged at a
// sibling temp file and renamed into place only on success, so a
// failed or canceled run never leaves a partial file at outPath.
func DecryptDatabase(ctx context.Context, inPath, outPath string, masterKey []byte, opts Options) (*Stats, error) {
	f, size, first, _, err := readFirstPage(inPath, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	salt := first[:page.SaltSize]
	sub, err := page.DeriveSubkeys(masterKey, salt)
	if err != nil {
		return nil, err
	}

	// Check page 1's MAC with the subkeys derived above, so the PBKDF2
	// derivation runs only once per file.
	if !opts.SkipValidation {
		if _, err := page.DecryptPage(first, sub, 0); err != nil {
			if errors.Is(err, errors.KindMacMismatch) {
				return nil, errors.InvalidKey(nil)
			}
			return nil, err
		}
	}

	totalPages := size / page.PageSize

	tmpPath := filepath.Join(filepath.Dir(outPath), filepath.Base(outPath)+"."+uuid.NewString()+".tmp")
	out, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.CreateFileFailed(tmpPath, err)
	}

	stats, err := decryptPages(ctx, f, out, sub, totalPages, opts.Progress)
	zero(sub.EncKey)
	zero(sub.MacKey)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, errors.WriteOutputFailed(closeErr)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return nil, errors.RenameFileFailed(outPath, err)
	}

	return stats, nil
}

func decryptPages(ctx context.Context, in io.Reader, out io.Writer, sub page.Subkeys, totalPages int64, progress func(int64, int64)) (*Stats, error) {
	if _, err := out.Write([]byte(page.SQLiteHeader)); err != nil {
		return nil, errors.WriteOutputFailed(err)
	}

	stats := &Stats{TotalPages: totalPages}
	buf := make([]byte, page.PageSize)

	for cur := int64(0); cur < totalPages; cur++ {
		select {
		case <-ctx.Done():
			return nil, errors.OperationCanceled()
		default:
		}

		n, err := io.ReadFull(in, buf)
		if err != nil {
			if (err == io.EOF || err == io.ErrUnexpectedEOF) && n > 0 {
				break
			}
			return nil, errors.ReadFileFailed("", err)
		}

		if isZeroPage(buf) {
			if _, err := out.Write(buf); err != nil {
				return nil, errors.WriteOutputFailed(err)
			}
			stats.ZeroPages++
			reportProgress(progress, cur, totalPages)
			continue
		}

		decrypted, err := page.DecryptPage(buf, sub, cur)
		if err != nil {
			return nil, err
		}
		if _, err := out.Write(decrypted); err != nil {
			return nil, errors.WriteOutputFailed(err)
		}
		stats.DecryptedPages++

		reportProgress(progress, cur, totalPages)
	}

	return stats, nil
}

// progressInterval bounds how often the progress callback fires, so a
// fast sequential pass over a large database doesn't spend more time
// in the callback than in the crypto it's reporting on.
const progressInterval = 64

func reportProgress(progress func(int64, int64), cur, total int64) {
	if progress == nil {
		return
	}
	if cur%progressInterval == 0 || cur == total-1 {
		progress(cur, total)
	}
}

// zero overwrites derived key material before its buffer is released.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
