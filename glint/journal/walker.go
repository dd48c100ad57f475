package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glint-search/glint/glint/filter"
	"github.com/glint-search/glint/glint/index"

	"github.com/sourcegraph/conc/pool"
)

// Walker is the fallback harvester for volumes without a usable change
// journal. It produces resolved entries directly via a level-by-level
// concurrent directory walk; functionally equivalent to the journal path
// but far slower, since it pays one directory read per directory instead of
// bulk record enumeration.
type Walker struct {
	maxWorkers int
}

// NewWalker sizes the walk pool the same way the attribute resolver does.
func NewWalker(maxWorkers int) *Walker {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &Walker{maxWorkers: maxWorkers}
}

// Walk enumerates the tree under rootPath, applying the same filter and
// harvest-time name rules as the journal path. Unreadable directories are
// skipped, not fatal.
func (w *Walker) Walk(ctx context.Context, rootPath string, f *filter.ScanFilter) ([]index.Entry, error) {
	root := strings.TrimRight(rootPath, "/\\")
	if root == "" {
		root = string(filepath.Separator)
	}
	if _, err := os.Stat(rootPath); err != nil {
		return nil, fmt.Errorf("cannot walk volume %s: %w", rootPath, err)
	}

	var (
		mu      sync.Mutex
		entries []index.Entry
	)
	level := []string{root}

	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		var nextMu sync.Mutex
		next := make([]string, 0, len(level))

		levelPool := pool.New().WithMaxGoroutines(w.maxWorkers).WithContext(ctx)
		for _, dir := range level {
			levelPool.Go(func(ctx context.Context) error {
				dirents, err := os.ReadDir(dir)
				if err != nil {
					slog.Debug("Skipping unreadable directory", "path", dir, "error", err)
					return nil
				}
				local := make([]index.Entry, 0, len(dirents))
				for _, de := range dirents {
					name := de.Name()
					if name == "" || name[0] == '$' || name[0] == '.' {
						continue
					}
					path := filepath.Join(dir, name)
					if de.IsDir() {
						if f.SkipDir(path) {
							continue
						}
						nextMu.Lock()
						next = append(next, path)
						nextMu.Unlock()
						// Allow-prefix ancestors are descended but not emitted.
						if f.Allowed(path) {
							local = append(local, index.MakeEntry(path, dir, name, 0, 0, true))
						}
						continue
					}
					if f.SkipFile(path) {
						continue
					}
					var size uint64
					var mtime float64
					if info, err := de.Info(); err == nil {
						size = uint64(info.Size())
						mtime = float64(info.ModTime().UnixNano()) / 1e9
					}
					local = append(local, index.MakeEntry(path, dir, name, size, mtime, false))
				}
				mu.Lock()
				entries = append(entries, local...)
				mu.Unlock()
				return nil
			})
		}
		if err := levelPool.Wait(); err != nil {
			return entries, err
		}
		level = next
	}

	slog.Info("Fallback walk complete", "volume", rootPath, "entries", len(entries))
	return entries, nil
}
