package batch

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash"

	"github.com/sjzar/wx4dec/internal/errors"
)

const stateFileName = ".wx4dec-state.json"

// fingerprintFile hashes a file's size together with its first page,
// which is enough to detect the vast majority of real edits (WeChat
// databases are append-mostly, and the page-0 salt changes whenever
// the file is re-keyed) without reading the entire file on every run.
func fingerprintFile(path string, size int64) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.OpenFileFailed(path, err)
	}
	defer f.Close()

	const sampleSize = 4096
	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, errors.ReadFileFailed(path, err)
	}

	h := xxhash.New()
	var sizeBuf [8]byte
	for i := range sizeBuf {
		sizeBuf[i] = byte(size >> (8 * i))
	}
	h.Write(sizeBuf[:])
	h.Write(buf[:n])

	return h.Sum64(), nil
}

// fingerprintCache is a flat map of relative path to last-seen
// fingerprint, persisted as JSON in the output root so an incremental
// batch run can skip files that have not changed.
type fingerprintCache struct {
	mu      sync.Mutex
	entries map[string]uint64
}

func loadFingerprintCache(outRoot string) (*fingerprintCache, error) {
	path := filepath.Join(outRoot, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fingerprintCache{entries: make(map[string]uint64)}, nil
		}
		return nil, errors.ReadFileFailed(path, err)
	}

	entries := make(map[string]uint64)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.CorruptInput("state file is not valid json: " + err.Error())
	}

	return &fingerprintCache{entries: entries}, nil
}

func (c *fingerprintCache) get(relPath string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[relPath]
	return v, ok
}

func (c *fingerprintCache) set(relPath string, fp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[relPath] = fp
}

func (c *fingerprintCache) save(outRoot string) error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return errors.New(errors.KindIoFailure, "failed to marshal fingerprint state", err)
	}

	path := filepath.Join(outRoot, stateFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WriteOutputFailed(err)
	}
	return nil
}
