// File: pkg/watch/watch.go
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"amalgam/pkg/ignore"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HeaderExtensions are the file extensions that trigger a rebuild.
var HeaderExtensions = map[string]bool{
	".h":   true,
	".hh":  true,
	".hpp": true,
	".hxx": true,
	".inl": true,
}

// RebuildFunc regenerates the artifact.
type RebuildFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Root     string         // Source directory, watched recursively.
	Debounce time.Duration  // Quiet period after the last change before rebuilding.
	Filter   *ignore.Filter // Paths relative to Root to ignore; may be nil.
	Exclude  []string       // Paths never treated as sources, e.g. the artifact itself.
}

// Stats counts watcher activity.
type Stats struct {
	Events        int
	Rebuilds      int
	Failures      int
	LastEventPath string
	LastRebuild   time.Time
}

// Watcher rebuilds the artifact whenever a header under Root changes.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	opts     Options
	exclude  map[string]bool
	rebuild  RebuildFunc
	logger   *zap.Logger
	pending  bool
	lastSeen time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats

	closeOnce sync.Once
}

// New creates a Watcher. Call Start to begin watching.
func New(opts Options, rebuild RebuildFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Filter == nil {
		opts.Filter = ignore.New(logger)
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	opts.Root = root

	exclude := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			exclude[abs] = true
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: fw,
		opts:    opts,
		exclude: exclude,
		rebuild: rebuild,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start registers every non-ignored directory under Root and starts the event
// loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs, err := w.collectDirectories()
	if err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", zap.String("directory", dir), zap.Error(err))
			continue
		}
		w.logger.Debug("Watching directory", zap.String("directory", dir))
	}
	w.logger.Info("Watching sources", zap.String("root", w.opts.Root), zap.Int("directoryCount", len(dirs)))

	go w.run(ctx)
	return nil
}

// Stop stops the event loop and releases the underlying watcher. It is safe to
// call more than once, and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Error("Failed to close watcher", zap.Error(err))
		}
	})
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a snapshot of the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.opts.Debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watcher context cancelled")
			return

		case <-w.stopCh:
			w.logger.Debug("Watcher stop signal received")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))

		case <-ticker.C:
			w.maybeRebuild(ctx)
		}
	}
}

// handleEvent records a relevant change and follows newly created directories.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.opts.Filter.Match(w.relative(event.Name) + "/") {
				if err := w.watcher.Add(event.Name); err != nil {
					w.logger.Warn("Failed to watch new directory", zap.String("directory", event.Name), zap.Error(err))
				}
			}
			return
		}
	}

	if !w.relevant(event.Name) {
		return
	}

	w.logger.Debug("Source changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.pending = true
	w.lastSeen = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.mu.Unlock()
}

// maybeRebuild runs the rebuild once the debounce period has passed.
func (w *Watcher) maybeRebuild(ctx context.Context) {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastSeen) < w.opts.Debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	started := time.Now()
	err := w.rebuild(ctx)

	w.mu.Lock()
	w.stats.Rebuilds++
	w.stats.LastRebuild = time.Now()
	if err != nil {
		w.stats.Failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Rebuild failed", zap.Error(err))
		return
	}
	w.logger.Info("Rebuilt artifact", zap.Duration("elapsed", time.Since(started)))
}

// relevant reports whether a change to path should trigger a rebuild.
func (w *Watcher) relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil || w.exclude[abs] {
		return false
	}
	if !HeaderExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return !w.opts.Filter.Match(w.relative(abs))
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// collectDirectories walks Root and returns every directory not ignored by the filter.
func (w *Watcher) collectDirectories() ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(w.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.opts.Root {
				return err
			}
			w.logger.Warn("Error accessing path during traversal", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root && w.opts.Filter.Match(w.relative(path)+"/") {
			w.logger.Debug("Skipping ignored directory", zap.String("directory", path))
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		w.logger.Error("Error during directory traversal", zap.Error(err))
		return nil, err
	}
	return dirs, nil
}
