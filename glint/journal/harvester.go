package journal

import (
	"context"
	"errors"
)

// ErrJournalUnavailable is reported when a volume's change journal cannot be
// opened or queried (non-NTFS filesystem, access denied, journal inactive,
// or a platform without journal support). It is recoverable: the caller
// falls back to a conventional directory walk for that volume.
var ErrJournalUnavailable = errors.New("change journal unavailable for volume")

// JournalInfo describes a volume's journal state as returned by the
// metadata query. Carried in the harvest result instead of ambient state so
// callers never consult a shared "journal available" flag.
type JournalInfo struct {
	JournalID uint64
	FirstUSN  int64
	NextUSN   int64
}

// Harvester enumerates a volume's journal into a flat record table.
type Harvester interface {
	// Harvest performs one complete enumeration pass for the volume rooted
	// at rootPath (e.g. `C:\`). The context is checked between
	// device-control calls; an in-flight call is never abandoned early.
	Harvest(ctx context.Context, rootPath string) ([]Record, JournalInfo, error)
}

// NewHarvester returns the platform harvester. On platforms without a
// change journal every Harvest call reports ErrJournalUnavailable.
func NewHarvester() Harvester {
	return newPlatformHarvester()
}
