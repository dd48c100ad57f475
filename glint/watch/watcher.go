// Package watch consumes filesystem change events and applies them to the
// in-memory index incrementally, without a full rebuild. The watch source
// is pluggable; the default implementation is fsnotify-based.
package watch

import (
	"context"
	"time"
)

// EventType represents the type of file system event
type EventType int

const (
	// EventCreate represents file/directory creation (and content writes,
	// which re-resolve the entry's metadata the same way)
	EventCreate EventType = iota
	// EventRemove represents file/directory removal
	EventRemove
	// EventRename represents file/directory rename
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	OldPath   string // For rename events
	Timestamp time.Time
	IsDir     bool
}

// Watcher defines the interface for file system watching
type Watcher interface {
	// Start begins watching the specified paths
	Start(ctx context.Context, paths []string) error

	// Events returns a channel of file system events
	Events() <-chan Event

	// Errors returns a channel of errors encountered during watching
	Errors() <-chan error

	// Add adds paths to watch
	Add(paths ...string) error

	// Remove removes paths from watching
	Remove(paths ...string) error

	// Close stops watching and cleans up resources
	Close() error
}

// Config holds tuning for the debounced event pipeline.
type Config struct {
	// DebounceDelay is the quiet period before a partial batch is flushed
	DebounceDelay time.Duration

	// MaxDebounceDelay bounds how long a busy path can defer a flush
	MaxDebounceDelay time.Duration

	// BatchSize flushes a batch early once this many events accumulate
	BatchSize int

	// QueueCapacity is the capacity of the event processing queue
	QueueCapacity int
}

// DefaultConfig returns a default watch configuration
func DefaultConfig() Config {
	return Config{
		DebounceDelay:    500 * time.Millisecond,
		MaxDebounceDelay: 2 * time.Second,
		BatchSize:        256,
		QueueCapacity:    4096,
	}
}
