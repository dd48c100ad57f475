package scan

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/glint-search/glint/glint/index"

	"github.com/sourcegraph/conc/pool"
)

const (
	// maxAttrWorkers caps the resolver pool regardless of core count.
	maxAttrWorkers = 32
	// minAttrBatch avoids over-partitioning small result sets.
	minAttrBatch = 512
)

// ResolveAttributes fills in size and mtime for every file entry by issuing
// one metadata query per path, partitioned into contiguous batches across a
// bounded worker pool. Each worker mutates only its own slice, so no
// locking is needed during this phase. Entries whose query fails
// (permission denied, deleted mid-scan, reparse point) keep zero size and
// mtime rather than erroring.
func ResolveAttributes(ctx context.Context, entries []index.Entry) {
	workers := min(max(runtime.NumCPU()*2, 4), maxAttrWorkers)
	batch := len(entries)/workers + 1
	if batch < minAttrBatch {
		batch = minAttrBatch
	}

	start := time.Now()
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for lo := 0; lo < len(entries); lo += batch {
		hi := min(lo+batch, len(entries))
		part := entries[lo:hi]
		p.Go(func(ctx context.Context) error {
			for i := range part {
				if part[i].IsDir {
					continue
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				info, err := os.Lstat(part[i].Path)
				if err != nil {
					continue
				}
				part[i].Size = uint64(info.Size())
				part[i].MTime = float64(info.ModTime().UnixNano()) / 1e9
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		slog.Warn("Attribute resolution interrupted", "error", err)
	}
	slog.Debug("Attribute resolution complete",
		"entries", len(entries),
		"workers", workers,
		"elapsed", time.Since(start))
}
