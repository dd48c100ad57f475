// Package engine wires the harvest pipeline, the in-memory index, the
// search engine, the incremental updater and the relational mirror into one
// Volume Index Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/glint-search/glint/glint/config"
	"github.com/glint-search/glint/glint/db"
	"github.com/glint-search/glint/glint/filter"
	"github.com/glint-search/glint/glint/index"
	"github.com/glint-search/glint/glint/journal"
	"github.com/glint-search/glint/glint/scan"
	"github.com/glint-search/glint/glint/search"
	"github.com/glint-search/glint/glint/watch"

	"github.com/google/uuid"
)

// ErrBuildFailed is returned when no volume could be harvested at all.
// Partial failures (some volumes unreadable) degrade to partial results
// instead.
var ErrBuildFailed = errors.New("index build failed: no volume could be harvested")

// Stats is the engine's explicit status surface. Callers must consult
// Ready rather than inferring state from result counts.
type Stats struct {
	Count    int
	Ready    bool
	Building bool
}

// Progress reports per-volume build progress to the caller.
type Progress func(volume, stage string, entries int)

// Engine is the Volume Index Engine facade.
type Engine struct {
	cfg       config.GlintConfig
	filter    *filter.ScanFilter
	ix        *index.Index
	searcher  *search.Engine
	mirror    db.MirrorStore
	harvester journal.Harvester
	walker    *journal.Walker
	updater   *watch.Updater
	building  atomic.Bool
}

// New assembles an engine from configuration. mirror may be nil to run
// without the relational fallback. A readable snapshot at the configured
// path warm-starts the index immediately.
func New(cfg config.GlintConfig, mirror db.MirrorStore) *Engine {
	ix := index.New()
	if cfg.SnapshotPath != "" {
		if err := ix.LoadSnapshot(cfg.SnapshotPath); err != nil {
			slog.Info("No usable snapshot, cold start", "path", cfg.SnapshotPath, "error", err)
		} else {
			slog.Info("Warm start from snapshot", "path", cfg.SnapshotPath, "entries", ix.Len())
		}
	}

	wcfg := watch.DefaultConfig()
	if cfg.Watcher.DebounceMillis > 0 {
		wcfg.DebounceDelay = time.Duration(cfg.Watcher.DebounceMillis) * time.Millisecond
	}
	if cfg.Watcher.MaxDebounceMillis > 0 {
		wcfg.MaxDebounceDelay = time.Duration(cfg.Watcher.MaxDebounceMillis) * time.Millisecond
	}
	if cfg.Watcher.BatchSize > 0 {
		wcfg.BatchSize = cfg.Watcher.BatchSize
	}
	if cfg.Watcher.QueueCapacity > 0 {
		wcfg.QueueCapacity = cfg.Watcher.QueueCapacity
	}

	var mirrorSink watch.Mirror
	if mirror != nil {
		mirrorSink = mirrorAdapter{mirror}
	}

	return &Engine{
		cfg:       cfg,
		filter:    filter.New(cfg.Filter),
		ix:        ix,
		searcher:  search.NewEngine(ix),
		mirror:    mirror,
		harvester: journal.NewHarvester(),
		walker:    journal.NewWalker(0),
		updater:   watch.NewUpdater(ix, mirrorSink, cfg.SnapshotPath, wcfg),
	}
}

// Index exposes the underlying index for stats and tests.
func (e *Engine) Index() *index.Index { return e.ix }

// Updater exposes the incremental updater so a watch source can be wired in.
func (e *Engine) Updater() *watch.Updater { return e.updater }

// Rebuild harvests every volume and atomically swaps the index contents.
// The updater is quiesced for the duration of the swap: a rebuild races
// with concurrent events and must win by being the terminal mutation. The
// stop flag is checked between volumes; the context is additionally checked
// between enumeration calls inside a volume.
func (e *Engine) Rebuild(ctx context.Context, volumes []string, progress Progress, stop *atomic.Bool) error {
	if len(volumes) == 0 {
		volumes = e.cfg.Volumes
	}
	if len(volumes) == 0 {
		return fmt.Errorf("%w: no volumes configured", ErrBuildFailed)
	}

	e.building.Store(true)
	defer e.building.Store(false)

	var entries []index.Entry
	harvested := 0

	for _, vol := range volumes {
		if stop != nil && stop.Load() {
			slog.Info("Rebuild stopped cooperatively", "volumes_done", harvested)
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		volEntries, err := e.harvestVolume(ctx, vol, progress)
		if err != nil {
			slog.Warn("Volume harvest failed", "volume", vol, "error", err)
			continue
		}
		entries = append(entries, volEntries...)
		harvested++
		report(progress, vol, "resolved", len(volEntries))
	}

	if harvested == 0 {
		return ErrBuildFailed
	}

	e.updater.Pause()
	e.ix.Build(entries)
	e.updater.Resume()

	if e.cfg.SnapshotPath != "" {
		if err := e.ix.SaveSnapshot(e.cfg.SnapshotPath); err != nil {
			slog.Warn("Snapshot save failed", "path", e.cfg.SnapshotPath, "error", err)
		}
	}
	if e.mirror != nil {
		if err := e.mirror.ReplaceAll(uuid.New(), entries); err != nil {
			slog.Warn("Mirror rebuild failed", "error", err)
		}
	}
	return nil
}

// harvestVolume produces resolved, attribute-complete entries for one
// volume, via the change journal when available and the directory walker
// otherwise.
func (e *Engine) harvestVolume(ctx context.Context, vol string, progress Progress) ([]index.Entry, error) {
	records, info, err := e.harvester.Harvest(ctx, vol)
	if err != nil {
		if !errors.Is(err, journal.ErrJournalUnavailable) {
			return nil, err
		}
		slog.Info("Change journal unavailable, falling back to directory walk", "volume", vol)
		report(progress, vol, "walking", 0)
		return e.walker.Walk(ctx, vol, e.filter)
	}

	slog.Debug("Journal harvested", "volume", vol, "records", len(records), "journal_id", info.JournalID)
	report(progress, vol, "harvested", len(records))

	entries := scan.ResolvePaths(records, journal.RootFileID, vol, e.filter)
	scan.ResolveAttributes(ctx, entries)
	return entries, nil
}

// Search evaluates a query against the in-memory index, falling back to
// the relational mirror only when the index is cold.
func (e *Engine) Search(q search.Query) ([]search.Result, error) {
	results, err := e.searcher.Search(q)
	if !errors.Is(err, search.ErrNotReady) {
		return results, err
	}
	if e.mirror == nil {
		return nil, err
	}

	entries, mErr := e.mirror.SearchNames(q.Keywords, q.Limit)
	if mErr != nil {
		// The cold-path failure does not mask the real condition.
		return nil, err
	}
	out := make([]search.Result, 0, len(entries))
	for _, en := range entries {
		out = append(out, search.Result{
			Name:  en.Name,
			Path:  en.Path,
			Size:  en.Size,
			MTime: en.MTime,
			IsDir: en.IsDir,
		})
	}
	return out, nil
}

// Stats returns the explicit ready/building status.
func (e *Engine) Stats() Stats {
	return Stats{
		Count:    e.ix.Len(),
		Ready:    e.ix.Ready(),
		Building: e.building.Load(),
	}
}

// Watch starts the fsnotify watch source over the configured volumes and
// runs the incremental updater until the context is cancelled.
func (e *Engine) Watch(ctx context.Context, volumes []string) error {
	if len(volumes) == 0 {
		volumes = e.cfg.Volumes
	}
	wcfg := watch.DefaultConfig()
	watcher, err := watch.NewFSNotifyWatcher(wcfg)
	if err != nil {
		return fmt.Errorf("failed to create watch source: %w", err)
	}
	if err := watcher.Start(ctx, volumes); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to start watch source: %w", err)
	}
	defer watcher.Close()

	e.updater.Run(ctx, watcher.Events())
	return nil
}

func report(progress Progress, vol, stage string, n int) {
	if progress != nil {
		progress(vol, stage, n)
	}
}

// mirrorAdapter narrows MirrorStore to the updater's mutation surface.
type mirrorAdapter struct {
	store db.MirrorStore
}

func (a mirrorAdapter) Upsert(e index.Entry) error     { return a.store.Upsert(e) }
func (a mirrorAdapter) Delete(path string) error       { return a.store.Delete(path) }
func (a mirrorAdapter) DeleteTree(prefix string) error { return a.store.DeleteTree(prefix) }
