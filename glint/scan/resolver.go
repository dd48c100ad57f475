// Package scan turns a harvested record table into resolved entries: the
// path resolver reconstructs full paths from the id -> parent-id graph and
// the attribute resolver fills in per-file size and modification time.
package scan

import (
	"log/slog"
	"strings"

	"github.com/glint-search/glint/glint/filter"
	"github.com/glint-search/glint/glint/index"
	"github.com/glint-search/glint/glint/journal"
)

// ResolvePaths performs a breadth-first traversal of the parent/child
// reference graph rooted at rootID, joining names onto cached parent paths.
// Excluded directories are pruned before their children are ever expanded,
// so excluded subtrees are never materialized. Records whose parent was
// never reached (ancestor excluded, or orphaned after certain filesystem
// operations) are silently dropped. If two records claim the same file id
// the last-seen record wins.
//
// Directories are emitted with zero size/mtime; file entries are emitted
// unfilled and completed by ResolveAttributes.
func ResolvePaths(records []journal.Record, rootID uint64, rootPath string, f *filter.ScanFilter) []index.Entry {
	sep := "/"
	if strings.ContainsRune(rootPath, '\\') {
		sep = "\\"
	}
	root := strings.TrimRight(rootPath, "/\\")

	byID := make(map[uint64]journal.Record, len(records))
	for _, r := range records {
		byID[r.FileID] = r
	}

	children := make(map[uint64][]uint64)
	var files []journal.Record
	for id, r := range byID {
		if r.IsDir {
			children[r.ParentID] = append(children[r.ParentID], id)
		} else {
			files = append(files, r)
		}
	}

	pathCache := map[uint64]string{rootID: root}
	entries := make([]index.Entry, 0, len(byID))
	queue := []uint64{rootID}
	pruned := 0

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		parentPath := pathCache[parentID]

		for _, childID := range children[parentID] {
			if childID == rootID {
				// The root's parent id points back at itself; never
				// re-expand it.
				continue
			}
			child := byID[childID]
			childPath := parentPath + sep + child.Name
			if f.SkipDir(childPath) {
				pruned++
				continue
			}
			pathCache[childID] = childPath
			queue = append(queue, childID)
			// Ancestors of an allow prefix stay traversable but are outside
			// the allow list themselves, so they are never emitted.
			if f.Allowed(childPath) {
				entries = append(entries, index.MakeEntry(childPath, parentPath, child.Name, 0, 0, true))
			}
		}
	}

	dirCount := len(entries)
	dropped := 0
	for _, r := range files {
		parentPath, ok := pathCache[r.ParentID]
		if !ok {
			dropped++
			continue
		}
		path := parentPath + sep + r.Name
		if f.SkipFile(path) {
			continue
		}
		entries = append(entries, index.MakeEntry(path, parentPath, r.Name, 0, 0, false))
	}

	slog.Debug("Path resolution complete",
		"root", root,
		"dirs", dirCount,
		"files", len(entries)-dirCount,
		"pruned_dirs", pruned,
		"orphaned_files", dropped)
	return entries
}
