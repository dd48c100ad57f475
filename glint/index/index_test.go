package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileEntry(path string, size uint64) Entry {
	parent := ""
	if i := lastSepIdx(path); i > 0 {
		parent = path[:i]
	}
	return MakeEntry(path, parent, Basename(path), size, 1700000000.5, false)
}

func dirEntry(path string) Entry {
	parent := ""
	if i := lastSepIdx(path); i > 0 {
		parent = path[:i]
	}
	return MakeEntry(path, parent, Basename(path), 0, 0, true)
}

func lastSepIdx(p string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return i
		}
	}
	return -1
}

func TestInsertAndLookup(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/docs/report.pdf", 1024))

	m, ok := ix.Lookup("root/docs/report.pdf")
	require.True(t, ok)
	assert.Equal(t, uint64(1024), m.Size)
	assert.False(t, m.IsDir)
	require.NoError(t, ix.CheckConsistency())
}

func TestInsertIdempotent(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/a.txt", 1))
	ix.Insert(fileEntry("root/a.txt", 2))

	assert.Equal(t, 1, ix.Len())
	m, _ := ix.Lookup("root/a.txt")
	assert.Equal(t, uint64(2), m.Size, "re-insert refreshes metadata")

	buckets := 0
	ix.ForEachName(func(name string, bucket map[string]struct{}) bool {
		buckets++
		assert.Len(t, bucket, 1)
		return false
	})
	assert.Equal(t, 1, buckets)
	require.NoError(t, ix.CheckConsistency())
}

func TestRemoveEmptiesBucket(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/docs/report.pdf", 1024))
	ix.Insert(fileEntry("root/other/report.pdf", 10))

	assert.True(t, ix.Remove("root/docs/report.pdf"))
	_, ok := ix.Lookup("root/docs/report.pdf")
	assert.False(t, ok)

	// The shared name bucket survives with the remaining path.
	found := false
	ix.ForEachName(func(name string, bucket map[string]struct{}) bool {
		if name == "report.pdf" {
			found = true
			assert.Len(t, bucket, 1)
		}
		return false
	})
	assert.True(t, found)

	// Removing the last holder deletes the bucket entirely.
	assert.True(t, ix.Remove("root/other/report.pdf"))
	ix.ForEachName(func(name string, bucket map[string]struct{}) bool {
		assert.NotEqual(t, "report.pdf", name)
		return false
	})
	assert.False(t, ix.Remove("root/other/report.pdf"), "second remove is a no-op")
	require.NoError(t, ix.CheckConsistency())
}

func TestRemoveTree(t *testing.T) {
	ix := New()
	ix.Insert(dirEntry("root/docs"))
	ix.Insert(fileEntry("root/docs/a.txt", 1))
	ix.Insert(fileEntry("root/docs/sub/b.txt", 2))
	ix.Insert(fileEntry("root/docsother/c.txt", 3))

	removed := ix.RemoveTree("root/docs")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, ix.Len())
	_, ok := ix.Lookup("root/docsother/c.txt")
	assert.True(t, ok, "sibling with a common string prefix must survive")
	require.NoError(t, ix.CheckConsistency())
}

func TestBuildReplacesContents(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/old.txt", 1))
	assert.False(t, ix.Ready())

	ix.Build([]Entry{
		fileEntry("root/new1.txt", 1),
		fileEntry("root/new2.txt", 2),
	})
	assert.True(t, ix.Ready())
	assert.Equal(t, 2, ix.Len())
	_, ok := ix.Lookup("root/old.txt")
	assert.False(t, ok)
	require.NoError(t, ix.CheckConsistency())
}

func TestExtensionBitmaps(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/a.pdf", 1))
	ix.Insert(fileEntry("root/b.pdf", 2))
	ix.Insert(fileEntry("root/c.txt", 3))
	ix.Insert(dirEntry("root/dir.pdf"))

	pdfs := ix.PathsForExt(".pdf")
	assert.ElementsMatch(t, []string{"root/a.pdf", "root/b.pdf"}, pdfs, "directories never enter extension bitmaps")

	ix.Remove("root/a.pdf")
	assert.ElementsMatch(t, []string{"root/b.pdf"}, ix.PathsForExt(".pdf"))

	ix.Remove("root/b.pdf")
	assert.Empty(t, ix.PathsForExt(".pdf"))
	assert.NotContains(t, ix.Extensions(), ".pdf")
}

func TestRefreshFlippingDirBitUpdatesExtBitmap(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/backup.pdf", 7))
	require.ElementsMatch(t, []string{"root/backup.pdf"}, ix.PathsForExt(".pdf"))

	// The file was replaced by a directory of the same name between events.
	ix.Insert(dirEntry("root/backup.pdf"))
	assert.Empty(t, ix.PathsForExt(".pdf"), "directories never serve extension queries")

	m, ok := ix.Lookup("root/backup.pdf")
	require.True(t, ok)
	assert.True(t, m.IsDir)

	// And back again.
	ix.Insert(fileEntry("root/backup.pdf", 9))
	assert.ElementsMatch(t, []string{"root/backup.pdf"}, ix.PathsForExt(".pdf"))
	require.NoError(t, ix.CheckConsistency())
}

func TestMaterialize(t *testing.T) {
	ix := New()
	ix.Insert(fileEntry("root/docs/a.txt", 7))

	entries := ix.Materialize([]string{"root/docs/a.txt", "root/gone.txt"})
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "root/docs", entries[0].ParentPath)
	assert.Equal(t, uint64(7), entries[0].Size)
}

func TestConsistencyAfterManyOperations(t *testing.T) {
	ix := New()
	for i := 0; i < 500; i++ {
		ix.Insert(fileEntry(fmt.Sprintf("root/d%d/f%d.dat", i%10, i), uint64(i)))
	}
	for i := 0; i < 500; i += 3 {
		ix.Remove(fmt.Sprintf("root/d%d/f%d.dat", i%10, i))
	}
	ix.RemoveTree("root/d4")
	require.NoError(t, ix.CheckConsistency())
}
