// Package filter implements the scan-time exclusion policy consulted by the
// path resolver and the fallback walker. A ScanFilter is immutable after
// construction and safe for concurrent use.
package filter

import (
	"strings"

	"github.com/glint-search/glint/glint/config"

	ignore "github.com/sabhiram/go-gitignore"
)

// ScanFilter holds the normalized exclusion rules for one build pass.
type ScanFilter struct {
	skipDirs      map[string]struct{}
	skipExts      map[string]struct{}
	allowPrefixes []string
	patterns      *ignore.GitIgnore
}

// New builds a ScanFilter from a FilterConfig. Directory names and
// extensions are lowercased, extensions are dot-prefixed, allow prefixes are
// lowercased with trailing separators trimmed. An unreadable ignore file is
// skipped rather than failing the build.
func New(cfg config.FilterConfig) *ScanFilter {
	f := &ScanFilter{
		skipDirs: make(map[string]struct{}, len(cfg.SkipDirs)),
		skipExts: make(map[string]struct{}, len(cfg.SkipExts)),
	}
	for _, d := range cfg.SkipDirs {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			f.skipDirs[d] = struct{}{}
		}
	}
	for _, e := range cfg.SkipExts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		f.skipExts[e] = struct{}{}
	}
	for _, p := range cfg.AllowPrefixes {
		p = strings.TrimRight(strings.ToLower(p), "/\\")
		if p != "" {
			f.allowPrefixes = append(f.allowPrefixes, p)
		}
	}
	if cfg.IgnoreFile != "" {
		if gi, err := ignore.CompileIgnoreFile(cfg.IgnoreFile); err == nil {
			f.patterns = gi
		}
	}
	return f
}

// Allowed reports whether path passes the allow-list gate. With an empty
// allow list every path is allowed; otherwise only paths inside one of the
// allow prefixes survive.
func (f *ScanFilter) Allowed(path string) bool {
	if len(f.allowPrefixes) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, p := range f.allowPrefixes {
		if lower == p || strings.HasPrefix(lower, p+"/") || strings.HasPrefix(lower, p+"\\") {
			return true
		}
	}
	return false
}

// allowlisted reports whether path is inside an allow prefix, in which case
// it bypasses every other exclusion rule.
func (f *ScanFilter) allowlisted(path string) bool {
	return len(f.allowPrefixes) > 0 && f.Allowed(path)
}

// SkipDir reports whether the directory at path should be pruned, given its
// full path. The basename and every path segment are matched against the
// skip-dir set case-insensitively.
func (f *ScanFilter) SkipDir(path string) bool {
	if f.allowlisted(path) {
		return false
	}
	if len(f.allowPrefixes) > 0 && !f.prefixOfAllowed(path) {
		return true
	}
	lower := strings.ToLower(path)
	for _, seg := range splitSegments(lower) {
		if _, ok := f.skipDirs[seg]; ok {
			return true
		}
	}
	if f.patterns != nil && f.patterns.MatchesPath(lower) {
		return true
	}
	return false
}

// SkipDirName reports whether a bare directory name is excluded. Used during
// traversal where only the basename is at hand.
func (f *ScanFilter) SkipDirName(name string) bool {
	_, ok := f.skipDirs[strings.ToLower(name)]
	return ok
}

// SkipFile reports whether the file at path should be dropped, applying the
// allow-list gate, the extension set and any ignore patterns.
func (f *ScanFilter) SkipFile(path string) bool {
	if f.allowlisted(path) {
		return false
	}
	if !f.Allowed(path) {
		return true
	}
	if _, ok := f.skipExts[extOf(path)]; ok {
		return true
	}
	if f.patterns != nil && f.patterns.MatchesPath(strings.ToLower(path)) {
		return true
	}
	return false
}

// prefixOfAllowed reports whether path is an ancestor of some allow prefix,
// on a segment boundary. Ancestors must not be pruned or the traversal could
// never reach the allowed subtree; they are still traversal-only and must not
// be emitted as entries (see Allowed).
func (f *ScanFilter) prefixOfAllowed(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range f.allowPrefixes {
		if lower == p || strings.HasPrefix(p, lower+"/") || strings.HasPrefix(p, lower+"\\") {
			return true
		}
	}
	return false
}

func splitSegments(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
}

func extOf(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return strings.ToLower(base[i:])
	}
	return ""
}
