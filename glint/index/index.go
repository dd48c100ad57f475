// Package index implements the canonical in-memory search structure: a
// name -> path-set multimap for matching and a path -> metadata map as the
// authoritative store, kept in lockstep under one exclusive lock. Derived
// accelerators (a radix tree over paths for prefix operations and roaring
// bitmaps keyed by extension) are maintained by the same mutations.
package index

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	radix "github.com/armon/go-radix"
)

// Meta is the by-value metadata stored per path. The index owns all entry
// data outright; nothing is shared with callers by reference.
type Meta struct {
	Size  uint64
	MTime float64
	IsDir bool
}

// Index is the process-wide in-memory index. All access, reads included,
// goes through one mutex since the maps are not safe for concurrent
// read-during-write.
type Index struct {
	mu      sync.Mutex
	paths   map[string]Meta
	names   map[string]map[string]struct{}
	tree    *radix.Tree
	ext     *extBitmaps
	ready   bool
	builtAt time.Time
}

// New returns an empty, not-ready index. It becomes ready after the first
// Build or a successful snapshot load.
func New() *Index {
	return &Index{
		paths: make(map[string]Meta),
		names: make(map[string]map[string]struct{}),
		tree:  radix.New(),
		ext:   newExtBitmaps(),
	}
}

// Insert adds or refreshes one entry. Inserting the same path twice leaves
// exactly one entry in both maps.
func (ix *Index) Insert(e Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.insertLocked(e)
}

func (ix *Index) insertLocked(e Entry) {
	if e.Path == "" {
		return
	}
	if old, exists := ix.paths[e.Path]; exists {
		// Refresh metadata in place; the derived structures already hold
		// this path. Extension bitmap membership follows the directory
		// flag, which can flip when a file is replaced by a directory
		// between watch events (or the reverse).
		ix.paths[e.Path] = Meta{Size: e.Size, MTime: e.MTime, IsDir: e.IsDir}
		if old.IsDir != e.IsDir {
			if id, ok := ix.ext.ids[e.Path]; ok {
				ext := ExtOf(strings.ToLower(Basename(e.Path)))
				if e.IsDir {
					ix.ext.drop(ext, id)
				} else {
					ix.ext.add(ext, id)
				}
			}
		}
		return
	}
	ix.paths[e.Path] = Meta{Size: e.Size, MTime: e.MTime, IsDir: e.IsDir}

	key := e.NameLower
	if key == "" {
		key = strings.ToLower(Basename(e.Path))
	}
	bucket, ok := ix.names[key]
	if !ok {
		bucket = make(map[string]struct{}, 1)
		ix.names[key] = bucket
	}
	bucket[e.Path] = struct{}{}

	id := ix.ext.register(e.Path)
	ix.tree.Insert(e.Path, id)
	if !e.IsDir {
		ix.ext.add(ExtOf(key), id)
	}
}

// Remove deletes the exact path from both maps, dropping the name bucket
// when it empties. It reports whether the path was present.
func (ix *Index) Remove(path string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(path)
}

func (ix *Index) removeLocked(path string) bool {
	if _, ok := ix.paths[path]; !ok {
		return false
	}
	delete(ix.paths, path)

	key := strings.ToLower(Basename(path))
	if bucket, ok := ix.names[key]; ok {
		delete(bucket, path)
		if len(bucket) == 0 {
			delete(ix.names, key)
		}
	}

	if v, ok := ix.tree.Delete(path); ok {
		id := v.(uint32)
		ix.ext.remove(ExtOf(key), id, path)
	}
	return true
}

// RemoveTree removes path itself and every indexed path under it, using the
// radix tree to walk the subtree without scanning the whole path map.
// Handles directory deletions without a re-enumeration of the volume.
func (ix *Index) RemoveTree(path string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	victims := []string{}
	for _, prefix := range []string{path + "/", path + "\\"} {
		ix.tree.WalkPrefix(prefix, func(p string, _ interface{}) bool {
			victims = append(victims, p)
			return false
		})
	}
	removed := 0
	if ix.removeLocked(path) {
		removed++
	}
	for _, p := range victims {
		if ix.removeLocked(p) {
			removed++
		}
	}
	return removed
}

// Build atomically replaces the index contents with the given entries and
// marks the index ready. Used after a full harvest.
func (ix *Index) Build(entries []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.paths = make(map[string]Meta, len(entries))
	ix.names = make(map[string]map[string]struct{}, len(entries))
	ix.tree = radix.New()
	ix.ext = newExtBitmaps()
	for _, e := range entries {
		ix.insertLocked(e)
	}
	ix.ready = true
	ix.builtAt = time.Now()
	slog.Info("Index built", "entries", len(ix.paths), "names", len(ix.names))
}

// Lookup returns the stored metadata for an exact path.
func (ix *Index) Lookup(path string) (Meta, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	m, ok := ix.paths[path]
	return m, ok
}

// Len returns the number of indexed paths.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.paths)
}

// Ready reports whether a first build (or snapshot load) has completed.
func (ix *Index) Ready() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.ready
}

// BuiltAt returns the time of the last completed build.
func (ix *Index) BuiltAt() time.Time {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.builtAt
}

// ForEachName iterates every distinct lowercased name key and its path set
// under the index lock. Iteration stops when fn returns true. The bucket
// must not be retained or mutated by fn.
func (ix *Index) ForEachName(fn func(nameLower string, bucket map[string]struct{}) (stop bool)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for key, bucket := range ix.names {
		if fn(key, bucket) {
			return
		}
	}
}

// Materialize returns full entries for the given paths under one lock
// acquisition. Paths no longer present are skipped.
func (ix *Index) Materialize(paths []string) []Entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		m, ok := ix.paths[p]
		if !ok {
			continue
		}
		name := Basename(p)
		parent := ""
		if i := strings.LastIndexAny(p, "/\\"); i > 0 {
			parent = p[:i]
		}
		out = append(out, MakeEntry(p, parent, name, m.Size, m.MTime, m.IsDir))
	}
	return out
}

// PathsForExt returns every indexed file path with the given extension,
// served from the roaring bitmap for that extension.
func (ix *Index) PathsForExt(ext string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.ext.pathsFor(strings.ToLower(ext))
}

// Extensions returns the distinct extensions currently indexed.
func (ix *Index) Extensions() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.ext.extensions()
}

// CheckConsistency verifies the co-maintained structures agree: every path
// appears in exactly its name bucket and every bucket member is a live path
// whose lowercased basename matches the bucket key.
func (ix *Index) CheckConsistency() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for path := range ix.paths {
		key := strings.ToLower(Basename(path))
		bucket, ok := ix.names[key]
		if !ok {
			return fmt.Errorf("path %q has no name bucket %q", path, key)
		}
		if _, ok := bucket[path]; !ok {
			return fmt.Errorf("path %q missing from name bucket %q", path, key)
		}
	}
	for key, bucket := range ix.names {
		if len(bucket) == 0 {
			return fmt.Errorf("empty name bucket %q was not deleted", key)
		}
		for path := range bucket {
			if _, ok := ix.paths[path]; !ok {
				return fmt.Errorf("name bucket %q references unknown path %q", key, path)
			}
			if got := strings.ToLower(Basename(path)); got != key {
				return fmt.Errorf("name bucket %q holds path %q with basename %q", key, path, got)
			}
		}
	}
	if ix.tree.Len() != len(ix.paths) {
		return fmt.Errorf("path tree holds %d entries, paths map holds %d", ix.tree.Len(), len(ix.paths))
	}
	return nil
}

// extBitmaps maintains roaring bitmaps of entry ids keyed by extension,
// plus the id<->path mappings needed to serve bitmap hits back as paths.
type extBitmaps struct {
	dict   map[string]*roaring.Bitmap
	ids    map[string]uint32
	rev    map[uint32]string
	nextID uint32
}

func newExtBitmaps() *extBitmaps {
	return &extBitmaps{
		dict: make(map[string]*roaring.Bitmap),
		ids:  make(map[string]uint32),
		rev:  make(map[uint32]string),
	}
}

func (eb *extBitmaps) register(path string) uint32 {
	if id, ok := eb.ids[path]; ok {
		return id
	}
	id := eb.nextID
	eb.nextID++
	eb.ids[path] = id
	eb.rev[id] = path
	return id
}

func (eb *extBitmaps) add(ext string, id uint32) {
	if ext == "" {
		return
	}
	bm, ok := eb.dict[ext]
	if !ok {
		bm = roaring.New()
		eb.dict[ext] = bm
	}
	bm.Add(id)
}

func (eb *extBitmaps) remove(ext string, id uint32, path string) {
	eb.drop(ext, id)
	delete(eb.ids, path)
	delete(eb.rev, id)
}

// drop clears bitmap membership only, keeping the id<->path mapping alive.
func (eb *extBitmaps) drop(ext string, id uint32) {
	if bm, ok := eb.dict[ext]; ok {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(eb.dict, ext)
		}
	}
}

func (eb *extBitmaps) pathsFor(ext string) []string {
	bm, ok := eb.dict[ext]
	if !ok {
		return nil
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		if p, ok := eb.rev[it.Next()]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (eb *extBitmaps) extensions() []string {
	out := make([]string, 0, len(eb.dict))
	for ext := range eb.dict {
		out = append(out, ext)
	}
	return out
}
