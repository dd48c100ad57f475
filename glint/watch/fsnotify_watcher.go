package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements the Watcher interface using fsnotify
type FSNotifyWatcher struct {
	watcher      *fsnotify.Watcher
	eventChan    chan Event
	errorChan    chan error
	config       Config
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	watchedPaths map[string]bool
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher
func NewFSNotifyWatcher(config Config) (*FSNotifyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FSNotifyWatcher{
		watcher:      fsWatcher,
		eventChan:    make(chan Event, config.QueueCapacity),
		errorChan:    make(chan error, 10),
		config:       config,
		ctx:          ctx,
		cancel:       cancel,
		watchedPaths: make(map[string]bool),
	}, nil
}

// Start begins watching the specified paths
func (w *FSNotifyWatcher) Start(ctx context.Context, paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		if err := w.addPathRecursive(path); err != nil {
			slog.Warn("Failed to add path to watcher", "path", path, "error", err)
			continue
		}
		w.watchedPaths[path] = true
	}

	w.wg.Add(1)
	go w.watchLoop(ctx)

	slog.Info("FSNotify watcher started", "paths", len(paths))
	return nil
}

// Events returns the event channel
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.eventChan
}

// Errors returns the error channel
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errorChan
}

// Add adds paths to watch
func (w *FSNotifyWatcher) Add(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		if err := w.addPathRecursive(path); err != nil {
			return fmt.Errorf("failed to add path %s: %w", path, err)
		}
		w.watchedPaths[path] = true
	}
	return nil
}

// Remove removes paths from watching
func (w *FSNotifyWatcher) Remove(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		if err := w.watcher.Remove(path); err != nil {
			slog.Warn("Failed to remove path from watcher", "path", path, "error", err)
		}
		delete(w.watchedPaths, path)
	}
	return nil
}

// Close stops watching and cleans up resources
func (w *FSNotifyWatcher) Close() error {
	w.cancel()
	if err := w.watcher.Close(); err != nil {
		slog.Warn("Error closing fsnotify watcher", "error", err)
	}
	w.wg.Wait()
	close(w.eventChan)
	close(w.errorChan)
	return nil
}

// watchLoop converts raw fsnotify events into engine events. Created
// directories are added to the watch set on the fly so new subtrees keep
// reporting.
func (w *FSNotifyWatcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.ctx.Done():
			return

		case raw, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			ev, send := w.translate(raw)
			if !send {
				continue
			}
			select {
			case w.eventChan <- ev:
			default:
				slog.Warn("Event queue full, dropping event", "path", ev.Path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errorChan <- err:
			default:
			}
		}
	}
}

func (w *FSNotifyWatcher) translate(raw fsnotify.Event) (Event, bool) {
	ev := Event{Path: raw.Name, Timestamp: time.Now()}

	switch {
	case raw.Has(fsnotify.Create):
		ev.Type = EventCreate
		if info, err := os.Lstat(raw.Name); err == nil && info.IsDir() {
			ev.IsDir = true
			// Best effort; a miss only costs events under the new subtree.
			if err := w.watcher.Add(raw.Name); err != nil {
				slog.Debug("Failed to watch new directory", "path", raw.Name, "error", err)
			}
		}
	case raw.Has(fsnotify.Write):
		ev.Type = EventCreate
	case raw.Has(fsnotify.Remove), raw.Has(fsnotify.Rename):
		// fsnotify reports a rename on the old path only; the new path
		// arrives as a separate create.
		ev.Type = EventRemove
	default:
		return Event{}, false
	}
	return ev, true
}

func (w *FSNotifyWatcher) addPathRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				slog.Debug("Failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}
