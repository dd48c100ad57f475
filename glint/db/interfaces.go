package db

import (
	"github.com/glint-search/glint/glint/index"

	"github.com/google/uuid"
)

// MirrorStore is the interface for the relational mirror of the index. The
// mirror is a fallback search path for when the in-memory index is cold;
// the engine never depends on it for its own operation.
type MirrorStore interface {
	InitSchema() error
	// ReplaceAll swaps the mirror contents for a new build in one
	// transaction, tagged with the build id.
	ReplaceAll(buildID uuid.UUID, entries []index.Entry) error
	Upsert(e index.Entry) error
	Delete(path string) error
	DeleteTree(prefix string) error
	// SearchNames matches keywords against entry names, preferring the
	// full-text index when available.
	SearchNames(keywords []string, limit int) ([]index.Entry, error)
	Count() (int64, error)
	Close() error
}
