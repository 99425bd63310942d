package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/wx4dec/internal/errors"
)

// Watch monitors root for new or rewritten *.db files and decrypts
// each one as it appears, until ctx is canceled. It reuses
// processEntry so a watched run behaves exactly like a one-shot
// DecryptBatch on every file it picks up.
func Watch(ctx context.Context, root, outRoot string, masterKey []byte, opts Options) (<-chan Result, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(errors.KindIoFailure, "failed to create file watcher", err)
	}

	if err := addWatchDirs(watcher, root); err != nil {
		watcher.Close()
		return nil, err
	}

	var cache *fingerprintCache
	if opts.Incremental {
		cache, err = loadFingerprintCache(outRoot)
		if err != nil {
			watcher.Close()
			return nil, err
		}
	}

	out := make(chan Result)

	go func() {
		defer watcher.Close()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				if cache != nil {
					_ = cache.save(outRoot)
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}

				info, err := os.Stat(event.Name)
				if err != nil {
					continue
				}
				if info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
				if !strings.HasSuffix(strings.ToLower(info.Name()), dbSuffix) {
					continue
				}

				rel, err := filepath.Rel(root, event.Name)
				if err != nil {
					rel = info.Name()
				}
				entry := Entry{Path: event.Name, RelPath: rel, Size: info.Size()}

				select {
				case out <- processEntry(ctx, entry, root, outRoot, masterKey, opts, cache):
				case <-ctx.Done():
					return
				}

			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(werr).Msg("batch watch error")
			}
		}
	}()

	return out, nil
}

// addWatchDirs registers root and every subdirectory with watcher so
// fsnotify reports events for files created at any depth.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				return errors.New(errors.KindIoFailure, "failed to watch directory: "+path, addErr)
			}
		}
		return nil
	})
}
