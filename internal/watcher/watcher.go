// Package watcher notifies callbacks when watched files change on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the directories of registered files and invokes a file's
// callbacks when an event names it. Watching the directory rather than the
// file keeps the watch alive across editors that save by renaming.
type Watcher struct {
	mu      sync.Mutex
	fs      *fsnotify.Watcher
	log     *zap.Logger
	files   map[string][]func()
	dirs    map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	closed  bool
}

// New creates a watcher. Callbacks run on the watcher's goroutine and must
// not block.
func New(log *zap.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fs:     fs,
		log:    log.With(zap.String("component", "watcher")),
		files:  make(map[string][]func()),
		dirs:   make(map[string]bool),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// WatchFile registers callback for changes of the file at path. The file
// does not need to exist yet, its directory does.
func (w *Watcher) WatchFile(path string, callback func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = append(w.files[abs], callback)
	w.log.Debug("watching file", zap.String("path", abs))
	return nil
}

// Start begins delivering events and invokes every registered callback once,
// so the initial state is treated as a change.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	var callbacks []func()
	for _, cbs := range w.files {
		callbacks = append(callbacks, cbs...)
	}
	w.mu.Unlock()

	go w.run(ctx)

	for _, cb := range callbacks {
		cb()
	}
	return nil
}

// Stop stops delivering events and releases the watches. It may be called
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	running := w.running
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	}
	if err := w.fs.Close(); err != nil {
		w.log.Warn("close file watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	name := filepath.Clean(event.Name)

	w.mu.Lock()
	callbacks := w.files[name]
	w.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}
	w.log.Debug("file changed", zap.String("path", name), zap.Stringer("op", event.Op))
	for _, cb := range callbacks {
		cb()
	}
}
