package index

import "strings"

// Entry is one resolved file or directory as ingested by the index.
// Path is unique within the index and ParentPath is always a prefix of Path.
// MTime is seconds since the Unix epoch; directories carry zero size/mtime.
type Entry struct {
	Name       string
	NameLower  string
	Path       string
	ParentPath string
	Ext        string
	Size       uint64
	MTime      float64
	IsDir      bool
}

// MakeEntry builds an Entry, deriving the lowercased name and extension.
func MakeEntry(path, parentPath, name string, size uint64, mtime float64, isDir bool) Entry {
	e := Entry{
		Name:       name,
		NameLower:  strings.ToLower(name),
		Path:       path,
		ParentPath: parentPath,
		Size:       size,
		MTime:      mtime,
		IsDir:      isDir,
	}
	if !isDir {
		e.Ext = ExtOf(name)
	}
	return e
}

// Basename returns the last path segment, handling both separator styles.
func Basename(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ExtOf returns the lowercased dotted extension of a file name, or "" when
// the name has none. A leading dot alone (hidden files) is not an extension.
func ExtOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}
