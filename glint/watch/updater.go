package watch

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glint-search/glint/glint/index"
)

// Mirror receives the same incremental mutations as the in-memory index so
// the relational fallback store stays roughly current. All mirror errors
// are absorbed; the mirror is never allowed to fail the live index.
type Mirror interface {
	Upsert(e index.Entry) error
	Delete(path string) error
	DeleteTree(prefix string) error
}

// snapshotLag is how long after a batch the background re-snapshot runs.
// Further batches within the window do not reschedule it.
const snapshotLag = 5 * time.Second

// Updater applies debounced filesystem event batches to the index and
// schedules background snapshot re-saves. It can be paused while a full
// rebuild is in flight; batches arriving while paused are discarded, since
// the rebuild is the terminal mutation and re-reads everything anyway.
type Updater struct {
	ix           *index.Index
	mirror       Mirror
	deb          *Debouncer
	snapshotPath string

	paused  atomic.Bool
	saving  atomic.Bool
	wg      sync.WaitGroup
	applied atomic.Int64
}

// NewUpdater builds an updater over the given index. mirror may be nil;
// snapshotPath may be empty to disable background re-saves.
func NewUpdater(ix *index.Index, mirror Mirror, snapshotPath string, cfg Config) *Updater {
	return &Updater{
		ix:           ix,
		mirror:       mirror,
		deb:          NewDebouncer(cfg),
		snapshotPath: snapshotPath,
	}
}

// Run consumes events until the context is cancelled or the event channel
// closes. It feeds the debouncer and applies the batches it emits.
func (u *Updater) Run(ctx context.Context, events <-chan Event) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		for batch := range u.deb.Batches() {
			u.applyBatch(batch)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			u.deb.Close()
			u.wg.Wait()
			return
		case ev, ok := <-events:
			if !ok {
				u.deb.Close()
				u.wg.Wait()
				return
			}
			u.deb.Add(ev)
		}
	}
}

// Pause quiesces the updater for the duration of a full rebuild.
func (u *Updater) Pause() { u.paused.Store(true) }

// Resume re-enables event application after a rebuild completes.
func (u *Updater) Resume() { u.paused.Store(false) }

// Applied returns the number of events applied so far.
func (u *Updater) Applied() int64 { return u.applied.Load() }

func (u *Updater) applyBatch(batch []Event) {
	if u.paused.Load() {
		slog.Debug("Updater paused, discarding batch", "events", len(batch))
		return
	}

	for _, ev := range batch {
		switch ev.Type {
		case EventCreate:
			u.applyCreate(ev.Path)
		case EventRemove:
			u.applyRemove(ev.Path)
		case EventRename:
			u.applyRemove(ev.OldPath)
			u.applyCreate(ev.Path)
		}
		u.applied.Add(1)
	}
	slog.Debug("Applied event batch", "events", len(batch), "indexed", u.ix.Len())
	u.scheduleSnapshot()
}

// applyCreate re-queries the entry's metadata and inserts it. A stat
// failure means the path vanished between the event and now; nothing to do.
func (u *Updater) applyCreate(path string) {
	if path == "" {
		return
	}
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	var size uint64
	var mtime float64
	if !info.IsDir() {
		size = uint64(info.Size())
		mtime = float64(info.ModTime().UnixNano()) / 1e9
	}
	parent := ""
	if i := lastSep(path); i > 0 {
		parent = path[:i]
	}
	e := index.MakeEntry(path, parent, index.Basename(path), size, mtime, info.IsDir())
	u.ix.Insert(e)
	if u.mirror != nil {
		if err := u.mirror.Upsert(e); err != nil {
			slog.Debug("Mirror upsert failed", "path", path, "error", err)
		}
	}
}

// applyRemove drops the exact path and, for directories, everything indexed
// beneath it, which handles directory deletions without re-enumeration. The
// mirror gets a single-row delete for known plain files and a subtree delete
// otherwise (directory, or a path the index never saw).
func (u *Updater) applyRemove(path string) {
	if path == "" {
		return
	}
	meta, known := u.ix.Lookup(path)
	removed := u.ix.RemoveTree(path)
	if removed > 1 {
		slog.Debug("Removed subtree from index", "path", path, "entries", removed)
	}
	if u.mirror == nil {
		return
	}
	var err error
	if known && !meta.IsDir {
		err = u.mirror.Delete(path)
	} else {
		err = u.mirror.DeleteTree(path)
	}
	if err != nil {
		slog.Debug("Mirror delete failed", "path", path, "error", err)
	}
}

// scheduleSnapshot queues one background snapshot save per quiet window;
// save failures are logged and never affect the live in-memory state.
func (u *Updater) scheduleSnapshot() {
	if u.snapshotPath == "" || !u.saving.CompareAndSwap(false, true) {
		return
	}
	time.AfterFunc(snapshotLag, func() {
		defer u.saving.Store(false)
		if err := u.ix.SaveSnapshot(u.snapshotPath); err != nil {
			slog.Warn("Background snapshot save failed", "path", u.snapshotPath, "error", err)
		}
	})
}

func lastSep(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return i
		}
	}
	return -1
}
