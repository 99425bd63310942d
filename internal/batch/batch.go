// Package batch implements the bounded worker-pool orchestrator that
// walks a directory tree of encrypted WeChat databases and decrypts
// each one, optionally skipping files that have not changed since a
// previous run.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sjzar/wx4dec/internal/decrypt/database"
	"github.com/sjzar/wx4dec/internal/errors"
	"github.com/sjzar/wx4dec/pkg/util"
)

// Entry describes one discovered database file under a scan root.
type Entry struct {
	Path    string // absolute path to the encrypted file
	RelPath string // path relative to the scan root, used to mirror output layout
	Size    int64
}

// Result records the outcome of decrypting a single Entry.
type Result struct {
	Entry   Entry
	OutPath string
	Stats   *database.Stats
	Skipped bool
	Err     error
}

// Options controls a batch run.
type Options struct {
	// Workers is the pool size. 0 means sequential (one file at a
	// time, no goroutines spawned for file processing). A negative
	// value means "auto": resolved from the host's CPU count.
	Workers int

	SkipValidation bool

	// ScanOnly stops after the directory walk and returns one Result
	// per discovered entry with no OutPath and no Stats, performing
	// no decryption.
	ScanOnly bool

	// Incremental, when true, consults and updates a fingerprint
	// cache under outRoot so unchanged files are skipped on repeat
	// runs.
	Incremental bool

	// Progress, if set, is called once per entry as it starts
	// processing.
	Progress func(Entry)
}

// dbSuffix is the extension of WeChat's encrypted database files.
const dbSuffix = ".db"

// Scan walks root and returns every *.db file found, sorted
// lexicographically by path relative to root.
func Scan(root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(info.Name()), dbSuffix) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = info.Name()
		}

		entries = append(entries, Entry{Path: path, RelPath: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.WalkFailed(err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })

	return entries, nil
}

// DecryptBatch scans root for database files and decrypts each one
// with masterKey, mirroring root's relative layout under outRoot. It
// returns the results of every attempted file; a per-file error does
// not stop the run. The aggregate error is non-nil only if the scan
// itself failed, outRoot could not be prepared, or (in incremental
// mode) the fingerprint state file could not be loaded.
func DecryptBatch(ctx context.Context, root, outRoot string, masterKey []byte, opts Options) ([]Result, error) {
	entries, err := Scan(root)
	if err != nil {
		return nil, err
	}
	if opts.ScanOnly {
		results := make([]Result, 0, len(entries))
		for _, e := range entries {
			results = append(results, Result{Entry: e})
		}
		return results, nil
	}
	if err := util.PrepareDir(outRoot); err != nil {
		return nil, errors.MkdirFailed(outRoot, err)
	}

	var cache *fingerprintCache
	if opts.Incremental {
		cache, err = loadFingerprintCache(outRoot)
		if err != nil {
			return nil, err
		}
	}

	workers := resolveWorkers(opts.Workers)

	if workers == 0 {
		results := make([]Result, 0, len(entries))
		for _, e := range entries {
			results = append(results, processEntry(ctx, e, root, outRoot, masterKey, opts, cache))
		}
		if cache != nil {
			_ = cache.save(outRoot)
		}
		return results, nil
	}

	jobs := make(chan Entry)
	resultsCh := make(chan Result)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				resultsCh <- processEntry(ctx, e, root, outRoot, masterKey, opts, cache)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, e := range entries {
			select {
			case jobs <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	results := make([]Result, 0, len(entries))
	var resultsMu sync.Mutex
	for r := range resultsCh {
		resultsMu.Lock()
		results = append(results, r)
		resultsMu.Unlock()
	}

	if cache != nil {
		_ = cache.save(outRoot)
	}

	return results, nil
}

func processEntry(ctx context.Context, e Entry, root, outRoot string, masterKey []byte, opts Options, cache *fingerprintCache) Result {
	if opts.Progress != nil {
		opts.Progress(e)
	}

	outPath := filepath.Join(outRoot, e.RelPath)

	if cache != nil {
		fp, err := fingerprintFile(e.Path, e.Size)
		if err == nil {
			if prev, ok := cache.get(e.RelPath); ok && prev == fp {
				if _, statErr := os.Stat(outPath); statErr == nil {
					return Result{Entry: e, OutPath: outPath, Skipped: true}
				}
			}
			cache.set(e.RelPath, fp)
		}
	}

	if err := util.PrepareDir(filepath.Dir(outPath)); err != nil {
		return Result{Entry: e, Err: errors.MkdirFailed(filepath.Dir(outPath), err)}
	}

	stats, err := database.DecryptDatabase(ctx, e.Path, outPath, masterKey, database.Options{
		SkipValidation: opts.SkipValidation,
	})
	if err != nil {
		return Result{Entry: e, OutPath: outPath, Err: err}
	}

	return Result{Entry: e, OutPath: outPath, Stats: stats}
}
