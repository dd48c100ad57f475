package db

import (
	"path/filepath"
	"testing"

	"github.com/glint-search/glint/glint/index"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) *MirrorProvider {
	t.Helper()
	m, err := NewMirrorProvider(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func entry(path string, size uint64, isDir bool) index.Entry {
	parent := ""
	if i := len(path) - len(index.Basename(path)) - 1; i > 0 {
		parent = path[:i]
	}
	return index.MakeEntry(path, parent, index.Basename(path), size, 1700000000.5, isDir)
}

func TestMirrorReplaceAll(t *testing.T) {
	m := newTestMirror(t)

	build := uuid.New()
	require.NoError(t, m.ReplaceAll(build, []index.Entry{
		entry("root/docs/report.pdf", 1024, false),
		entry("root/docs", 0, true),
	}))

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// A second build fully replaces the first.
	require.NoError(t, m.ReplaceAll(uuid.New(), []index.Entry{
		entry("root/only.txt", 1, false),
	}))
	n, err = m.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMirrorUpsertAndDelete(t *testing.T) {
	m := newTestMirror(t)

	e := entry("root/a.txt", 10, false)
	require.NoError(t, m.Upsert(e))
	require.NoError(t, m.Upsert(e), "upsert is idempotent")

	e.Size = 20
	require.NoError(t, m.Upsert(e))

	results, err := m.SearchNames([]string{"a.txt"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(20), results[0].Size)

	require.NoError(t, m.Delete("root/a.txt"))
	n, err := m.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMirrorDeleteTree(t *testing.T) {
	m := newTestMirror(t)

	require.NoError(t, m.Upsert(entry("root/docs", 0, true)))
	require.NoError(t, m.Upsert(entry("root/docs/a.txt", 1, false)))
	require.NoError(t, m.Upsert(entry("root/docs/sub/b.txt", 1, false)))
	require.NoError(t, m.Upsert(entry("root/docsother/c.txt", 1, false)))

	require.NoError(t, m.DeleteTree("root/docs"))

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the sibling with the shared name prefix survives")

	results, err := m.SearchNames([]string{"c.txt"}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMirrorDeleteTreeWindowsSeparators(t *testing.T) {
	m := newTestMirror(t)

	require.NoError(t, m.Upsert(entry(`C:\Users\me\docs`, 0, true)))
	require.NoError(t, m.Upsert(entry(`C:\Users\me\docs\a.txt`, 1, false)))
	require.NoError(t, m.Upsert(entry(`C:\Users\me\other.txt`, 1, false)))

	require.NoError(t, m.DeleteTree(`C:\Users\me\docs`))

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMirrorSearchNames(t *testing.T) {
	m := newTestMirror(t)

	require.NoError(t, m.ReplaceAll(uuid.New(), []index.Entry{
		entry("root/quarterly report.pdf", 1, false),
		entry("root/report.txt", 1, false),
		entry("root/notes.md", 1, false),
	}))

	results, err := m.SearchNames([]string{"report"}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Multiple keywords narrow the result set.
	results, err = m.SearchNames([]string{"quarterly", "report"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "root/quarterly report.pdf", results[0].Path)

	results, err = m.SearchNames([]string{"absent"}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = m.SearchNames(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMirrorSearchLimit(t *testing.T) {
	m := newTestMirror(t)

	require.NoError(t, m.ReplaceAll(uuid.New(), []index.Entry{
		entry("a/report.txt", 1, false),
		entry("b/report.txt", 1, false),
		entry("c/report.txt", 1, false),
	}))

	results, err := m.SearchNames([]string{"report"}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestLikeEscape(t *testing.T) {
	assert.Equal(t, `100\%`, likeEscape("100%"))
	assert.Equal(t, `a\_b`, likeEscape("a_b"))
	assert.Equal(t, `C:\\Users`, likeEscape(`C:\Users`))
	assert.Equal(t, "plain", likeEscape("plain"))
}

func TestMockMirrorMatchesProviderSemantics(t *testing.T) {
	m := NewMockMirror()

	require.NoError(t, m.Upsert(entry("root/docs/a.txt", 1, false)))
	require.NoError(t, m.Upsert(entry("root/docsother/c.txt", 1, false)))
	require.NoError(t, m.DeleteTree("root/docs"))

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
