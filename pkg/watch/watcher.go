// Package watch re-runs work when input files change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before reporting it.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the files that changed in one settled burst, sorted.
type ChangeFunc func(ctx context.Context, changed []string) error

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher monitors a fixed set of files.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]fileState
	debounce time.Duration
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for watch events and callback failures.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New watches paths. Every path must exist. Parent directories are watched
// so that files replaced by rename are still seen.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsWatcher,
		files:    make(map[string]fileState, len(paths)),
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			_ = fsWatcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			_ = fsWatcher.Close()
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		w.files[absPath] = fileState{modTime: info.ModTime(), size: info.Size()}

		dir := filepath.Dir(absPath)
		if dirs[dir] {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			_ = fsWatcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	return w, nil
}

// Files returns the watched absolute paths, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for path := range w.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Run blocks until ctx is done, calling onChange once per settled burst of
// changes. Callback errors are logged and watching continues. The watcher is
// closed when Run returns.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.fs.Close()

	pending := make(map[string]bool)
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[absPath]; !watched {
				continue
			}
			pending[absPath] = true
			settle = time.After(w.debounce)

		case <-settle:
			settle = nil
			changed := w.collect(pending)
			pending = make(map[string]bool)
			if len(changed) == 0 {
				continue
			}

			w.logger.Info("input changed", zap.Strings("files", changed))
			if err := onChange(ctx, changed); err != nil {
				w.logger.Error("rerun failed", zap.Error(err))
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// collect returns the pending files whose size or modification time moved,
// and records their new state.
func (w *Watcher) collect(pending map[string]bool) []string {
	var changed []string
	for path := range pending {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn("cannot stat watched file", zap.String("file", path), zap.Error(err))
			continue
		}
		prev := w.files[path]
		if info.ModTime().Equal(prev.modTime) && info.Size() == prev.size {
			continue
		}
		w.files[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		changed = append(changed, path)
	}
	sort.Strings(changed)
	return changed
}
