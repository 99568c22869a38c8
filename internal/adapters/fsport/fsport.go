// Package fsport implements ports.FileSystemPort against the real
// operating system filesystem, using fsnotify for change notification
// and os/io for reads. It is the production counterpart to
// ports.FakeFileSystem.
package fsport

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bytehotd/bytehotd/internal/ports"
)

// FileSystem is a production ports.FileSystemPort backed by fsnotify.
type FileSystem struct {
	logger *slog.Logger
}

// New constructs a FileSystem. logger defaults to slog.Default when nil.
func New(logger *slog.Logger) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystem{logger: logger}
}

// Watch starts an fsnotify watcher rooted at root, optionally adding
// every existing subdirectory when recursive is true, and translates
// fsnotify.Event into ports.RawChange until ctx is cancelled.
func (f *FileSystem) Watch(ctx context.Context, root string, recursive bool) (<-chan ports.RawChange, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addTree(watcher, root, recursive); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan ports.RawChange, 256)
	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				kind, ok := classify(event)
				if !ok {
					continue
				}
				if recursive && kind == ports.Created {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := watcher.Add(event.Name); err != nil {
							f.logger.Warn("fsport: failed to watch new directory", "path", event.Name, "error", err)
						}
						continue
					}
				}
				select {
				case out <- ports.RawChange{Path: event.Name, Kind: kind, ObservedAt: time.Now()}:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("fsport: watcher error", "root", root, "error", err)
			}
		}
	}()

	return out, nil
}

func classify(event fsnotify.Event) (ports.ChangeKind, bool) {
	switch {
	case event.Op.Has(fsnotify.Create):
		return ports.Created, true
	case event.Op.Has(fsnotify.Write):
		return ports.Modified, true
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return ports.Deleted, true
	default:
		return "", false
	}
}

func addTree(watcher *fsnotify.Watcher, root string, recursive bool) error {
	if !recursive {
		return watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// Read returns the full contents of path.
func (f *FileSystem) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Exists reports whether path is present on disk.
func (f *FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Size returns path's size in bytes.
func (f *FileSystem) Size(ctx context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
