package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
)

// DefaultDebounce is the quiet window used when Config.Debounce is unset.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrNoRebuild indicates a watcher without a rebuild function.
	ErrNoRebuild = errors.New("watch: rebuild function is required")
	// ErrNothingToWatch indicates that none of the roots exist.
	ErrNothingToWatch = errors.New("watch: nothing to watch")
)

// Config selects what is watched and how events are coalesced.
type Config struct {
	// Roots are directories watched recursively or single files.
	Roots []string
	// Exclude are directories whose events are ignored, typically the
	// working and HTML directories the build writes to.
	Exclude []string
	// Debounce is the quiet window after the last event.
	Debounce time.Duration
	// MaxDelay bounds how long a continuous burst can postpone a rebuild.
	// Defaults to ten quiet windows.
	MaxDelay time.Duration
}

// RebuildFunc is called once per burst of changes. Its error is logged.
type RebuildFunc func(ctx context.Context, t Trigger) error

// Watcher runs rebuilds on file changes.
type Watcher struct {
	cfg     Config
	rebuild RebuildFunc
	logger  *slog.Logger

	exclude  []string
	files    map[string]bool
	treeDirs map[string]bool

	readyOnce sync.Once
	ready     chan struct{}
}

// New validates cfg and returns a watcher. Nothing is registered until Run.
func New(cfg Config, rebuild RebuildFunc, logger *slog.Logger) (*Watcher, error) {
	if rebuild == nil {
		return nil, ErrNoRebuild
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * cfg.Debounce
	}
	w := &Watcher{
		cfg:      cfg,
		rebuild:  rebuild,
		logger:   logger,
		files:    map[string]bool{},
		treeDirs: map[string]bool{},
		ready:    make(chan struct{}),
	}
	for _, ex := range cfg.Exclude {
		w.exclude = append(w.exclude, absClean(ex))
	}
	return w, nil
}

// Ready is closed once Run has registered its roots.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is canceled. A running rebuild is waited for
// before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	for _, root := range w.cfg.Roots {
		if err := w.addRoot(fsw, root); err != nil {
			w.logger.Warn("Not watching path", logfields.Path(root), logfields.Error(err))
		}
	}
	if len(w.files) == 0 && len(w.treeDirs) == 0 {
		return ErrNothingToWatch
	}
	w.logger.Info("Watching for changes",
		logfields.Count(len(w.treeDirs)+len(w.files)),
		slog.Duration("debounce", w.cfg.Debounce))
	w.readyOnce.Do(func() { close(w.ready) })

	quietTimer := time.NewTimer(time.Hour)
	quietTimer.Stop()
	maxTimer := time.NewTimer(time.Hour)
	maxTimer.Stop()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var (
		d               debouncer
		quietC, maxC    <-chan time.Time
		done            chan error
		pendingAfterRun bool
	)

	start := func(t Trigger) {
		w.logger.Info("Change detected, rebuilding",
			logfields.Path(t.LastPath),
			logfields.Count(t.Count),
			slog.String("cause", t.Cause))
		done = make(chan error, 1)
		go func() { done <- w.rebuild(ctx, t) }()
	}
	emit := func(cause string) {
		if done != nil {
			pendingAfterRun = true
			return
		}
		if t, ok := d.flush(cause); ok {
			quietTimer.Stop()
			maxTimer.Stop()
			quietC, maxC = nil, nil
			start(t)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if done != nil {
				<-done
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(fsw, ev) {
				continue
			}
			if d.add(ev.Name, time.Now()) {
				maxTimer.Reset(w.cfg.MaxDelay)
				maxC = maxTimer.C
			}
			quietTimer.Reset(w.cfg.Debounce)
			quietC = quietTimer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logfields.Error(err))

		case <-quietC:
			quietC = nil
			emit("quiet")

		case <-maxC:
			maxC = nil
			emit("max_delay")

		case err := <-done:
			done = nil
			if err != nil && ctx.Err() == nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
			}
			if pendingAfterRun {
				pendingAfterRun = false
				emit("after_running")
			}
		}
	}
}

// handle updates the registered directories for ev and reports whether
// the event should start or extend a burst.
func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) bool {
	path := absClean(ev.Name)
	if ev.Op == fsnotify.Chmod || w.excluded(path) || ignoredName(filepath.Base(path)) {
		return false
	}
	if !w.files[path] && !w.treeDirs[filepath.Dir(path)] {
		return false
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		delete(w.treeDirs, path)
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			if err := w.addTree(fsw, path); err != nil {
				w.logger.Warn("Not watching new directory", logfields.Path(path), logfields.Error(err))
			}
		}
	}
	w.logger.Debug("File change", logfields.Path(path), slog.String("op", ev.Op.String()))
	return true
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	root = absClean(root)
	fi, err := os.Stat(root)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return w.addTree(fsw, root)
	}
	// editors replace files, so the parent is watched
	if err := fsw.Add(filepath.Dir(root)); err != nil {
		return err
	}
	w.files[root] = true
	return nil
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredName(d.Name()) {
			return filepath.SkipDir
		}
		if w.excluded(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.treeDirs[path] = true
		return nil
	})
}

func (w *Watcher) excluded(path string) bool {
	for _, ex := range w.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ignoredName matches hidden files, editor droppings and byte code.
func ignoredName(name string) bool {
	switch {
	case strings.HasPrefix(name, "."),
		strings.HasSuffix(name, "~"),
		strings.HasSuffix(name, ".swp"),
		strings.HasSuffix(name, ".pyc"),
		name == "__pycache__":
		return true
	}
	return false
}

func absClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
