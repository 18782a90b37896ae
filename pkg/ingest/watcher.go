package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/source"
)

// DefaultDebounce is how long a repository must be quiet before a change
// triggers re-ingestion.
const DefaultDebounce = 2 * time.Second

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// OnChange is called with the repository id once changes settle.
	OnChange func(repositoryID string)

	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher watches local repository directories and reports changes per
// repository after a quiet period.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func(string)
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	roots  map[string]string
	dirs   map[string][]string
	timers map[string]*time.Timer
}

// NewWatcher creates a Watcher. Call Run to start delivering changes.
func NewWatcher(c WatcherConfig) (*Watcher, error) {
	if c.OnChange == nil {
		return nil, errors.New("watcher requires an OnChange callback")
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Logger == nil {
		c.Logger = reslog.Nop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsw:      fsw,
		onChange: c.OnChange,
		debounce: c.Debounce,
		logger:   c.Logger,
		roots:    make(map[string]string),
		dirs:     make(map[string][]string),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch adds root and every non-skipped directory below it.
func (w *Watcher) Watch(repositoryID, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.roots[root] = repositoryID
	w.mu.Unlock()

	return w.addTree(repositoryID, root)
}

func (w *Watcher) addTree(repositoryID, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && source.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return err
		}
		w.mu.Lock()
		w.dirs[repositoryID] = append(w.dirs[repositoryID], p)
		w.mu.Unlock()
		return nil
	})
}

// Unwatch stops watching every directory of repositoryID.
func (w *Watcher) Unwatch(repositoryID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, dir := range w.dirs[repositoryID] {
		_ = w.fsw.Remove(dir)
	}
	delete(w.dirs, repositoryID)
	for root, id := range w.roots {
		if id == repositoryID {
			delete(w.roots, root)
		}
	}
	if t, ok := w.timers[repositoryID]; ok {
		t.Stop()
		delete(w.timers, repositoryID)
	}
}

// Run delivers debounced changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	repositoryID, rel := w.owner(event.Name)
	if repositoryID == "" {
		return
	}
	if source.InSkippedDir(rel) || source.SkipDir(filepath.Base(event.Name)) {
		return
	}

	if event.Has(fsnotify.Create) {
		if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
			if err := w.addTree(repositoryID, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	w.logger.Debug("source changed", "repository_id", repositoryID, "path", rel, "op", event.Op.String())
	w.schedule(repositoryID)
}

// owner finds the repository whose root is the longest prefix of name.
func (w *Watcher) owner(name string) (string, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var best, id string
	for root, rid := range w.roots {
		if name != root && !strings.HasPrefix(name, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best, id = root, rid
		}
	}
	if id == "" {
		return "", ""
	}
	rel, err := filepath.Rel(best, name)
	if err != nil {
		return "", ""
	}
	return id, filepath.ToSlash(rel)
}

func (w *Watcher) schedule(repositoryID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[repositoryID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[repositoryID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, repositoryID)
		w.mu.Unlock()
		w.onChange(repositoryID)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.fsw.Close()
}
