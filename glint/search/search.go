// Package search evaluates queries against the in-memory index. Matching
// operates on distinct lowercased name keys, so cost is bounded by the
// number of distinct names rather than the number of indexed paths.
package search

import (
	"errors"
	"regexp"
	"strings"

	"github.com/glint-search/glint/glint/index"
)

// Mode selects how keywords are matched against name keys.
type Mode int

const (
	// ModeSubstring requires every keyword to be a substring of the name.
	ModeSubstring Mode = iota
	// ModeFuzzy accepts subsequence and initials matches above MinScore.
	ModeFuzzy
	// ModeRegex treats the query as one case-insensitive pattern.
	ModeRegex
)

// ErrNotReady is returned for queries issued before the index has completed
// its first build. Callers must distinguish this from zero matches.
var ErrNotReady = errors.New("index is not ready")

// Query is one search request. Keywords are matched per Mode; Ext, when
// set, restricts candidates to files with that extension. Limit <= 0 means
// unlimited.
type Query struct {
	Keywords []string
	Mode     Mode
	Ext      string
	Limit    int
}

// Result is one matched entry. Score is meaningful in fuzzy mode only (the
// lowest keyword score for the name); results are not globally ranked.
type Result struct {
	Name  string
	Path  string
	Size  uint64
	MTime float64
	IsDir bool
	Score int
}

// Engine evaluates queries against one index.
type Engine struct {
	ix *index.Index
}

func NewEngine(ix *index.Index) *Engine {
	return &Engine{ix: ix}
}

// Search runs the query. An empty keyword list yields no results. A
// malformed regular expression yields zero matches rather than an error,
// since user-typed queries transiently contain invalid syntax while being
// composed.
func (e *Engine) Search(q Query) ([]Result, error) {
	if !e.ix.Ready() {
		return nil, ErrNotReady
	}

	keywords := make([]string, 0, len(q.Keywords))
	for _, kw := range q.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 && q.Ext == "" {
		return nil, nil
	}

	if q.Ext != "" {
		return e.searchByExt(q, keywords), nil
	}

	match := e.matcher(keywords, q.Mode)
	type hit struct {
		paths []string
		score int
	}
	var (
		matched []hit
		total   int
	)
	e.ix.ForEachName(func(key string, bucket map[string]struct{}) bool {
		score, ok := match(key)
		if !ok {
			return false
		}
		paths := make([]string, 0, len(bucket))
		for p := range bucket {
			paths = append(paths, p)
			total++
			if q.Limit > 0 && total >= q.Limit {
				break
			}
		}
		matched = append(matched, hit{paths: paths, score: score})
		return q.Limit > 0 && total >= q.Limit
	})

	results := make([]Result, 0, total)
	for _, h := range matched {
		for _, entry := range e.ix.Materialize(h.paths) {
			results = append(results, Result{
				Name:  entry.Name,
				Path:  entry.Path,
				Size:  entry.Size,
				MTime: entry.MTime,
				IsDir: entry.IsDir,
				Score: h.score,
			})
		}
	}
	return results, nil
}

// searchByExt serves extension-constrained queries from the index's
// extension bitmaps and applies the keyword matcher to each candidate's
// basename.
func (e *Engine) searchByExt(q Query, keywords []string) []Result {
	ext := strings.ToLower(q.Ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	match := e.matcher(keywords, q.Mode)

	var hits []string
	scores := make(map[string]int)
	for _, p := range e.ix.PathsForExt(ext) {
		key := strings.ToLower(index.Basename(p))
		score, ok := match(key)
		if !ok {
			continue
		}
		hits = append(hits, p)
		scores[p] = score
		if q.Limit > 0 && len(hits) >= q.Limit {
			break
		}
	}

	results := make([]Result, 0, len(hits))
	for _, entry := range e.ix.Materialize(hits) {
		results = append(results, Result{
			Name:  entry.Name,
			Path:  entry.Path,
			Size:  entry.Size,
			MTime: entry.MTime,
			IsDir: entry.IsDir,
			Score: scores[entry.Path],
		})
	}
	return results
}

// matcher compiles the per-key predicate for the query mode. The returned
// score is 100 for non-fuzzy modes.
func (e *Engine) matcher(keywords []string, mode Mode) func(key string) (int, bool) {
	switch mode {
	case ModeRegex:
		re, err := regexp.Compile("(?i)" + strings.Join(keywords, " "))
		if err != nil {
			return func(string) (int, bool) { return 0, false }
		}
		return func(key string) (int, bool) {
			return substringScore, re.MatchString(key)
		}
	case ModeFuzzy:
		return func(key string) (int, bool) {
			low := substringScore
			for _, kw := range keywords {
				s := FuzzyScore(kw, key)
				if s < MinScore {
					return 0, false
				}
				if s < low {
					low = s
				}
			}
			return low, true
		}
	default:
		return func(key string) (int, bool) {
			for _, kw := range keywords {
				if !strings.Contains(key, kw) {
					return 0, false
				}
			}
			return substringScore, true
		}
	}
}
