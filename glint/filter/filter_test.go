package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glint-search/glint/glint/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipDirByName(t *testing.T) {
	f := New(config.FilterConfig{SkipDirs: []string{"Windows", "node_modules"}})

	assert.True(t, f.SkipDir(`C:\Windows`))
	assert.True(t, f.SkipDir(`C:\windows`), "matching is case-insensitive")
	assert.True(t, f.SkipDir("/home/user/project/node_modules"))
	assert.True(t, f.SkipDir(`C:\Windows\System32`), "any path segment matches")
	assert.False(t, f.SkipDir(`C:\Users\docs`))
}

func TestSkipDirName(t *testing.T) {
	f := New(config.FilterConfig{SkipDirs: []string{"windows"}})
	assert.True(t, f.SkipDirName("Windows"))
	assert.False(t, f.SkipDirName("Users"))
}

func TestSkipFileByExtension(t *testing.T) {
	f := New(config.FilterConfig{SkipExts: []string{".tmp", "log"}})

	assert.True(t, f.SkipFile("/data/cache.tmp"))
	assert.True(t, f.SkipFile("/data/Cache.TMP"))
	assert.True(t, f.SkipFile("/var/app.log"), "extensions are normalized to a leading dot")
	assert.False(t, f.SkipFile("/data/report.pdf"))
	assert.False(t, f.SkipFile("/data/noext"))
}

func TestAllowListGate(t *testing.T) {
	f := New(config.FilterConfig{
		SkipDirs:      []string{"windows"},
		SkipExts:      []string{".tmp"},
		AllowPrefixes: []string{`C:\Users`},
	})

	// Inside an allow prefix every other exclusion is bypassed.
	assert.False(t, f.SkipFile(`C:\Users\me\scratch.tmp`))
	assert.False(t, f.SkipDir(`C:\Users\me\windows`))

	// Outside every allow prefix paths are dropped outright.
	assert.True(t, f.SkipFile(`C:\Temp\file.txt`))
	assert.False(t, f.Allowed(`C:\Temp\file.txt`))

	// Ancestors of an allow prefix must stay traversable.
	assert.False(t, f.SkipDir(`C:\Users`))
}

func TestAllowListAncestorsMatchOnSegmentBoundary(t *testing.T) {
	f := New(config.FilterConfig{AllowPrefixes: []string{`root/Users/me/docs`}})

	// True ancestors of the prefix are traversable but not themselves allowed.
	assert.False(t, f.SkipDir("root/Users"))
	assert.False(t, f.SkipDir("root/Users/me"))
	assert.False(t, f.Allowed("root/Users"))
	assert.False(t, f.Allowed("root/Users/me"))

	// A sibling sharing a name prefix is no ancestor and is pruned.
	assert.True(t, f.SkipDir("root/Use"))
	assert.True(t, f.SkipDir("root/Users/m"))
}

func TestAllowedWithEmptyAllowList(t *testing.T) {
	f := New(config.FilterConfig{})
	assert.True(t, f.Allowed("/anything/at/all"))
	assert.False(t, f.SkipFile("/anything/at/all"))
}

func TestIgnoreFilePatterns(t *testing.T) {
	dir := t.TempDir()
	ignorePath := filepath.Join(dir, "ignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("*.iso\nbuild/\n"), 0o644))

	f := New(config.FilterConfig{IgnoreFile: ignorePath})
	assert.True(t, f.SkipFile("/data/image.iso"))
	assert.False(t, f.SkipFile("/data/image.txt"))
}

func TestMissingIgnoreFileIsNotFatal(t *testing.T) {
	f := New(config.FilterConfig{IgnoreFile: "/does/not/exist"})
	assert.False(t, f.SkipFile("/data/file.txt"))
}
