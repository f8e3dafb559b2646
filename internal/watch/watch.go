// Package watch implements spec.md §4.11: a debounced filesystem observer
// over every discovered package's source tree that re-invokes the Task
// Graph scheduler on the affected subgraph.
//
// Grounded on the teacher's internal/filewatcher package (recursive
// fsnotify.Watcher setup, exclude-pattern filtering, and the
// rename/remove-dedup "cookie" pattern used to paper over duplicate events
// on network filesystems), trimmed to the single cross-platform fsnotify
// backend spec.md needs — Darwin FSEvents is a platform optimization the
// teacher carries that this module does not require.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/karrick/godirwalk"

	"github.com/neex/neex/internal/pkggraph"
)

// DefaultDebounce is spec.md §4.11's default coalescing window.
const DefaultDebounce = 300 * time.Millisecond

// ignoredPathSubstrings mirrors spec.md §4.11's ignore list.
var ignoredPathSubstrings = []string{"node_modules", string(filepath.Separator) + ".git", "dist", ".next", ".neex"}

// Watcher observes every discovered package's source tree and invokes
// OnRebuild with the transitively-closed, debounced set of affected
// packages whenever files change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    hclog.Logger
	pg        *pkggraph.Graph
	debounce  time.Duration

	OnRebuild func(packages []string)

	mu          sync.Mutex
	pending     map[string]bool
	rebuilding  bool
	rerunQueued bool
	timer       *time.Timer
	pathCookies map[string]time.Time // dedups rapid remove+create pairs on the same path
}

// New constructs a Watcher over pg's packages. debounce <= 0 uses
// DefaultDebounce.
func New(pg *pkggraph.Graph, logger hclog.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher:   fsWatcher,
		logger:      logger,
		pg:          pg,
		debounce:    debounce,
		pending:     make(map[string]bool),
		pathCookies: make(map[string]time.Time),
	}, nil
}

// Start recursively watches every package's preferred source root ("src" if
// present, otherwise the package root) and begins processing events in a
// background goroutine.
func (w *Watcher) Start() error {
	for _, pkg := range w.pg.Packages {
		root := pkg.Dir
		if info, err := os.Stat(filepath.Join(pkg.Dir, "src")); err == nil && info.IsDir() {
			root = filepath.Join(pkg.Dir, "src")
		}
		if err := w.watchRecursively(root); err != nil {
			w.logger.Warn("failed to watch package root", "package", pkg.Name, "root", root, "error", err)
		}
	}
	go w.loop()
	return nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) watchRecursively(root string) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil || !isDir {
				return nil
			}
			if isIgnoredPath(path) {
				return godirwalk.SkipThis
			}
			return w.addWatchWithRetry(path)
		},
		ErrorCallback: func(pathname string, err error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
		Unsorted:            true,
		AllowNonDirectory:   true,
		FollowSymbolicLinks: false,
	})
}

// addWatchWithRetry registers path with fsnotify, retrying briefly on
// failure. A directory reported by the directory walk or a Create event can vanish (a
// rename, a build tool's atomic swap) before Add reaches the kernel; a short
// exponential backoff absorbs that race instead of silently dropping the
// watch.
func (w *Watcher) addWatchWithRetry(path string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 200 * time.Millisecond
	return backoff.Retry(func() error {
		if _, err := os.Stat(path); err != nil {
			return backoff.Permanent(err)
		}
		return w.fsWatcher.Add(path)
	}, b)
}

func isIgnoredPath(path string) bool {
	for _, substr := range ignoredPathSubstrings {
		if strings.Contains(path, substr) {
			return true
		}
	}
	return false
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if isIgnoredPath(event.Name) {
		return
	}

	// Deduplicate the rapid remove-then-create pair many editors and
	// network filesystems emit for a single logical save, by treating a
	// second event on the same path within the debounce window as part of
	// the same change rather than a fresh one.
	w.mu.Lock()
	now := time.Now()
	if last, ok := w.pathCookies[event.Name]; ok && now.Sub(last) < w.debounce {
		w.pathCookies[event.Name] = now
		w.mu.Unlock()
		return
	}
	w.pathCookies[event.Name] = now

	pkg := longestPrefixMatch(event.Name, w.pg)
	if pkg != "" {
		w.pending[pkg] = true
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isIgnoredPath(event.Name) {
			_ = w.addWatchWithRetry(event.Name)
		}
	}

	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.fire)
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.rebuilding {
		// A rebuild is already in flight; accumulate and trigger exactly one
		// follow-up rebuild once it completes (spec.md §4.11 re-entrancy).
		w.rerunQueued = true
		w.mu.Unlock()
		return
	}

	changed := make([]string, 0, len(w.pending))
	for pkg := range w.pending {
		changed = append(changed, pkg)
	}
	w.pending = make(map[string]bool)
	w.rebuilding = true
	w.mu.Unlock()

	if len(changed) == 0 {
		w.mu.Lock()
		w.rebuilding = false
		w.mu.Unlock()
		return
	}

	affected := w.pg.TransitiveDependents(changed)
	if w.OnRebuild != nil {
		w.OnRebuild(affected)
	}

	w.mu.Lock()
	w.rebuilding = false
	rerun := w.rerunQueued
	w.rerunQueued = false
	w.mu.Unlock()

	if rerun {
		w.fire()
	}
}

func longestPrefixMatch(path string, pg *pkggraph.Graph) string {
	best := ""
	bestLen := -1
	for name, pkg := range pg.Packages {
		rel, err := filepath.Rel(pkg.Dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(pkg.Dir) > bestLen {
			bestLen = len(pkg.Dir)
			best = name
		}
	}
	return best
}
