// Package watch rebuilds the circuit when its inputs change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bargo/internal/logging"
	"bargo/internal/paths"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called once per settled burst of changes with the paths
// that changed. An error is logged and counted; watching continues.
type ChangeFunc func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Extra are additional files or directories to watch, relative to the
	// project root.
	Extra []string
}

// Stats counts watcher activity.
type Stats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches src/, Nargo.toml and Prover.toml of one project.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	layout   paths.Layout
	extra    []string
	onChange ChangeFunc
	debounce time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
}

// New creates a Watcher for the project at root.
func New(root string, onChange ChangeFunc, o Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	w := &Watcher{
		watcher:  fw,
		layout:   paths.New(filepath.Clean(root)),
		onChange: onChange,
		debounce: o.Debounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, e := range o.Extra {
		if !filepath.IsAbs(e) {
			e = filepath.Join(root, e)
		}
		w.extra = append(w.extra, filepath.Clean(e))
	}
	return w, nil
}

// Start registers the watched directories and starts the event loop in a
// goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// The root is watched for the manifest and prover inputs.
	if err := w.watcher.Add(w.layout.Root); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		if cerr := w.watcher.Close(); cerr != nil {
			logging.WatchError("error closing watcher: %v", cerr)
		}
		return err
	}
	if err := w.addTree(w.layout.SourceDir()); err != nil {
		logging.Get(logging.CategoryWatch).Warn("cannot watch %s: %v", w.layout.SourceDir(), err)
	}
	for _, e := range w.extra {
		if err := w.addTree(e); err != nil {
			logging.Get(logging.CategoryWatch).Warn("cannot watch %s: %v", e, err)
		}
	}
	logging.Watch("Watching %s", strings.Join(w.WatchList(), ", "))

	go w.run(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stop ends the event loop and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.WatchDebug("stopped")
}

// WatchList returns the watched directories.
func (w *Watcher) WatchList() []string {
	list := w.watcher.WatchList()
	sort.Strings(list)
	return list
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// addTree watches dir and every directory below it. A plain file is
// watched through its parent.
func (w *Watcher) addTree(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return w.watcher.Add(filepath.Dir(dir))
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
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
			logging.WatchError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx, time.Now())
		}
	}
}

func (w *Watcher) tick() time.Duration {
	t := w.debounce / 5
	if t < 10*time.Millisecond {
		t = 10 * time.Millisecond
	}
	return t
}

// Relevant reports whether a change to name can affect the build.
func (w *Watcher) Relevant(name string) bool {
	name = filepath.Clean(name)
	l := w.layout
	switch name {
	case l.Manifest(), l.ProverInput():
		return true
	}
	if within(l.SourceDir(), name) {
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	for _, e := range w.extra {
		if within(e, name) {
			return true
		}
	}
	return false
}

func within(dir, name string) bool {
	return name == dir || strings.HasPrefix(name, dir+string(filepath.Separator))
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.Relevant(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories under src/ must be watched too.
	if event.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logging.WatchError("cannot watch %s: %v", event.Name, err)
			}
		}
	}

	logging.WatchDebug("%s %s", event.Op, event.Name)
	w.mu.Lock()
	now := time.Now()
	w.pending[event.Name] = now
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = now
	w.mu.Unlock()
}

// flush fires onChange once when every pending change has settled past the
// debounce window.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	for _, t := range w.pending {
		if now.Sub(t) < w.debounce {
			w.mu.Unlock()
			return
		}
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, w.layout.Rel(p))
	}
	w.pending = make(map[string]time.Time)
	w.stats.Triggers++
	w.mu.Unlock()

	sort.Strings(changed)
	logging.Watch("Change detected: %s", strings.Join(changed, ", "))
	if w.onChange == nil {
		return
	}
	if err := w.onChange(ctx, changed); err != nil {
		logging.WatchError("rebuild failed: %v", err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
	}
}
