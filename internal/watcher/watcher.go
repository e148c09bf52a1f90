// Package watcher auto-ingests files dropped into watched directories.
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

// Rapid write bursts for one file collapse into a single ingest.
const defaultDebounce = 400 * time.Millisecond

// Watcher watches a set of root directories and calls the ingest callback
// once a created or written file settles. The store is append-only, so a
// file removal only cancels that file's pending ingest.
type Watcher struct {
	extensions []string
	recursive  bool
	onIngest   func(path string)
	debounce   time.Duration
	logger     *zap.Logger

	mu          sync.Mutex
	roots       []string
	watchedDirs map[string][]string // root -> dirs registered with fsnotify
	pending     map[string]*time.Timer
	fsw         *fsnotify.Watcher
	quit        chan struct{}
	started     bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger enables debug logging of watcher events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over the given roots. extensions filters which
// files trigger onIngest (empty matches everything).
func NewWatcher(roots []string, extensions []string, recursive bool, onIngest func(path string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		recursive:   recursive,
		onIngest:    onIngest,
		debounce:    defaultDebounce,
		watchedDirs: make(map[string][]string),
		pending:     make(map[string]*time.Timer),
		quit:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) debug(msg string, fields ...zap.Field) {
	if w.logger != nil {
		w.logger.Debug(msg, fields...)
	}
}

// Start registers the roots with fsnotify and launches the event loop, which
// runs until ctx is cancelled or Stop is called. Missing roots are created.
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
	w.debug("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		root = filepath.Clean(root)
		dirs, err := registerTree(fsw, root, w.recursive, true)
		if err != nil {
			_ = fsw.Close()
			return err
		}
		w.watchedDirs[root] = dirs
	}
	w.fsw = fsw
	w.started = true
	go w.run(ctx, fsw)
	return nil
}

// registerTree adds root (and, when recursive, its subdirectories) to fsw and
// returns the registered paths. When create is set a missing root is created
// first.
func registerTree(fsw *fsnotify.Watcher, root string, recursive, create bool) ([]string, error) {
	if create {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}
	if !recursive {
		if err := fsw.Add(root); err != nil {
			return nil, err
		}
		return []string{root}, nil
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// run owns the fsnotify handle it was started with, so a concurrent Stop
// cannot pull it out from under the select.
func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.quit:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.watchNewDirectory(path)
			return
		}
		if matchExtension(path, w.extensions) {
			w.scheduleIngest(path)
		}
	case fsnotify.Remove:
		w.cancelIngest(path)
	}
}

// watchNewDirectory registers a directory that appeared inside a watched root
// (created or moved in) and ingests whatever it already contains. Registration
// is best effort; a subdirectory that vanished mid-walk is skipped.
func (w *Watcher) watchNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	recursive := w.recursive
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	walk := func(path string) {
		if err := fsw.Add(path); err != nil {
			w.debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
		} else {
			w.debug("watcher added new directory", zap.String("path", path))
		}
	}
	if recursive {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				walk(path)
			}
			return nil
		})
	} else {
		walk(dir)
	}
	w.ingestExisting(dir)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		if inDir(filepath.Clean(root), path) {
			return true
		}
	}
	return false
}

// inDir reports whether path is dir itself or lies beneath it.
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
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range extensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

// scheduleIngest arms (or re-arms) the debounce timer for path.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.debug("watcher ingesting file (debounced)", zap.String("path", path))
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancelIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// AddDirectory starts watching root. Already-watched roots are a no-op. With
// syncExisting the files already under root are ingested in the background.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			w.mu.Unlock()
			return nil
		}
	}
	dirs, err := registerTree(w.fsw, abs, w.recursive, true)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watchedDirs[abs] = dirs
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	w.debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting && w.onIngest != nil {
		go w.ingestExisting(abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Chunks already stored stay stored.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	for i, r := range w.roots {
		if filepath.Clean(r) != abs {
			continue
		}
		for _, dir := range w.watchedDirs[abs] {
			_ = w.fsw.Remove(dir)
		}
		delete(w.watchedDirs, abs)
		w.roots = append(w.roots[:i], w.roots[i+1:]...)
		w.debug("watcher directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// ingestExisting walks root and ingests every matching file directly,
// bypassing the debounce. The pipeline's registry check keeps already-known
// files cheap.
func (w *Watcher) ingestExisting(root string) {
	w.mu.Lock()
	exts := append([]string(nil), w.extensions...)
	w.mu.Unlock()
	w.debug("watcher syncing directory", zap.String("root", root))
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if matchExtension(path, exts) {
			w.debug("watcher sync ingesting file", zap.String("path", path))
			if w.onIngest != nil {
				w.onIngest(path)
			}
		}
		return nil
	})
}

// SyncExistingFiles ingests the files already present under each watched root.
// Call after Start to pick up what was there before watching began.
func (w *Watcher) SyncExistingFiles() {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	w.debug("watcher syncing existing files", zap.Strings("roots", roots))
	for _, root := range roots {
		w.ingestExisting(root)
	}
}

// Stop tears down the watcher: pending ingests are cancelled and the fsnotify
// handle is closed. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	close(w.quit)
}
