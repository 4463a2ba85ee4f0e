// Package watcher watches inbox directories for URL list files and hands each
// new or changed list to a handler, one at a time.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultDebounce = 400 * time.Millisecond
	queueSize       = 128
)

// Handler processes one list file. Calls never overlap.
type Handler func(ctx context.Context, path string)

// stamp identifies a version of a file; a list is handled again only when it changes.
type stamp struct {
	size    int64
	modTime time.Time
}

// Watcher watches root directories and queues matching files for the handler.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	handle     Handler
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	seen    map[string]stamp
	queue   chan string
	done    chan struct{}
	started bool
	stopped sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before it is queued.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over roots. extensions filters file names (empty = all).
func New(roots, extensions []string, recursive bool, handle Handler, opts ...Option) *Watcher {
	w := &Watcher{
		roots:      append([]string(nil), roots...),
		extensions: extensions,
		recursive:  recursive,
		handle:     handle,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		seen:       make(map[string]stamp),
		queue:      make(chan string, queueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start begins watching. Missing roots are created. It returns immediately;
// events are processed until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := w.addRoot(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.started = true
	w.logger.Info("watching inbox",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))

	go w.run(ctx, fsw)
	go w.work(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.queue:
			w.logger.Info("processing list", zap.String("path", path))
			w.handle(ctx, path)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.recursive {
				w.addNewDirectory(fsw, ev.Name)
			}
			return
		}
		if w.wants(ev.Name) {
			w.schedule(ev.Name)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.mu.Lock()
		if t, ok := w.pending[ev.Name]; ok {
			t.Stop()
			delete(w.pending, ev.Name)
		}
		delete(w.seen, ev.Name)
		w.mu.Unlock()
	}
}

// addNewDirectory watches a directory created under a root and queues the
// lists already inside it (files copied in with the folder emit no events).
func (w *Watcher) addNewDirectory(fsw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Debug("failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if w.wants(path) {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

// enqueue queues path unless the same version was already queued.
func (w *Watcher) enqueue(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	w.mu.Lock()
	if prev, ok := w.seen[path]; ok && prev == st {
		w.mu.Unlock()
		return
	}
	w.seen[path] = st
	w.mu.Unlock()

	select {
	case w.queue <- path:
	case <-w.done:
	}
}

// SyncExisting queues every matching file already present under the roots.
func (w *Watcher) SyncExisting() {
	for _, root := range w.Directories() {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && !w.recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if w.wants(path) {
				w.enqueue(path)
			}
			return nil
		})
	}
}

func (w *Watcher) wants(path string) bool {
	name := filepath.Base(path)
	// Editor swap files and office lock files.
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return matchExtension(path, w.extensions) && w.underRoot(path)
}

func (w *Watcher) underRoot(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range w.Directories() {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops watching and releases resources. A list being handled is not interrupted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.started = false
	w.mu.Unlock()
	w.stopped.Do(func() { close(w.done) })
}
