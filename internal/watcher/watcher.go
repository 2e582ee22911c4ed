// Package watcher keeps collections in sync with knowledge directories using
// fsnotify, with per-file debouncing and add/remove of roots at runtime.
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
	"github.com/hyperjump/zantara/internal/indexer"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives debounced file changes. *indexer.Indexer implements it.
type Sink interface {
	IngestFile(ctx context.Context, src indexer.Source, path string) (*indexer.IngestResult, error)
	DeleteFile(ctx context.Context, collection, path string) error
}

var _ Sink = (*indexer.Indexer)(nil)

// Root is a watched directory and the collection and access tier its files are ingested with.
type Root struct {
	Dir    string
	Source indexer.Source
}

// Watcher watches root directories and forwards file changes to a Sink.
type Watcher struct {
	roots       []Root
	extensions  []string
	recursive   bool
	sink        Sink
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	ctx         context.Context
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	rootPaths   map[string][]string // root dir -> watched dirs
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, etc.).
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filter which files are
// forwarded (empty = all). Directories are made absolute.
func NewWatcher(roots []Root, extensions []string, recursive bool, sink Sink, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		extensions:  extensions,
		recursive:   recursive,
		sink:        sink,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		rootPaths:   make(map[string][]string),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
		ctx:         context.Background(),
	}
	for _, r := range roots {
		if abs, err := filepath.Abs(r.Dir); err == nil {
			r.Dir = abs
		}
		w.roots = append(w.roots, r)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// Missing root directories are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher starting",
		zap.Strings("roots", rootDirs(w.roots)),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		if err := w.addRootLocked(root.Dir); err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, fw)
	return nil
}

func rootDirs(roots []Root) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.Dir
	}
	return out
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	root, ok := w.rootFor(path)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		// A directory created or moved in.
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(root, path)
			return
		}
		if w.matchExtension(path) {
			w.debounceIngest(root, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if w.matchExtension(path) {
			w.remove(root, path)
		}
	}
}

// handleNewDirectory watches a new directory (and its subdirectories when
// recursive) and ingests the files already inside it.
func (w *Watcher) handleNewDirectory(root Root, dirPath string) {
	w.logger.Debug("watcher handling new directory", zap.String("path", dirPath))

	w.mu.Lock()
	recursive := w.recursive
	fw := w.watcher
	w.mu.Unlock()

	if fw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.syncDirectory(root, dirPath)
}

// rootFor returns the innermost root containing path.
func (w *Watcher) rootFor(path string) (Root, bool) {
	w.mu.Lock()
	roots := append([]Root(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	var best Root
	found := false
	for _, r := range roots {
		if inDir(r.Dir, clean) && (!found || len(r.Dir) > len(best.Dir)) {
			best, found = r, true
		}
	}
	return best, found
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if len(extensions) == 0 {
		return true
	}
	extNorm := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceIngest(root Root, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watcher ingesting file (debounced)", zap.String("path", path))
		w.ingest(root, path)
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

func (w *Watcher) ingest(root Root, path string) {
	if w.sink == nil {
		return
	}
	res, err := w.sink.IngestFile(w.context(), root.Source, path)
	if err != nil {
		w.logger.Warn("Failed to ingest file",
			zap.String("path", path),
			zap.String("collection", root.Source.Collection),
			zap.Error(err))
		return
	}
	if res != nil && !res.Skipped {
		w.logger.Info("Ingested file",
			zap.String("path", path),
			zap.String("collection", root.Source.Collection),
			zap.Int("chunks", res.Document.ChunkCount))
	}
}

func (w *Watcher) remove(root Root, path string) {
	if w.sink == nil {
		return
	}
	if err := w.sink.DeleteFile(w.context(), root.Source.Collection, path); err != nil {
		w.logger.Debug("watcher remove failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("Removed file", zap.String("path", path), zap.String("collection", root.Source.Collection))
}

// AddRoot adds a root directory to watch and optionally ingests existing files.
func (w *Watcher) AddRoot(root Root, syncExisting bool) error {
	abs, err := filepath.Abs(root.Dir)
	if err != nil {
		return err
	}
	root.Dir = abs
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	for _, r := range w.roots {
		if r.Dir == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, root)
	w.logger.Debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(root, abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(dir string) error {
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		paths = append(paths, dir)
	}
	w.rootPaths[dir] = paths
	return nil
}

func (w *Watcher) syncDirectory(root Root, dir string) {
	w.logger.Debug("watcher syncing directory", zap.String("dir", dir))
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!w.recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matchExtension(path) {
			w.ingest(root, path)
		}
		return nil
	})
}

// RemoveRoot stops watching the given directory. Ingested documents are kept.
func (w *Watcher) RemoveRoot(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if r.Dir == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Debug("watcher directory removed", zap.String("path", abs))
	return nil
}

// Roots returns a copy of the current watched roots.
func (w *Watcher) Roots() []Root {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Root(nil), w.roots...)
}

// SyncExistingFiles ingests all matching files already present in each root.
// Call this after Start.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Roots() {
		w.syncDirectory(root, root.Dir)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
