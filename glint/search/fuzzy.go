package search

import "strings"

// MinScore is the acceptance threshold: a name matches a fuzzy query only
// when every keyword scores at least this much against it.
const MinScore = 50

const (
	substringScore = 100
	subsequenceMin = 60
	initialsScore  = 50
)

// segmentSeparators split a name into segments for the initials match.
const segmentSeparators = "-_. "

// FuzzyScore rates how well keyword matches name. Both are expected to be
// lowercased. Scoring tiers: literal substring (100), in-order character
// subsequence (floor 60, rising with match density), initials of the name's
// segments (50). Returns 0 when none apply.
func FuzzyScore(keyword, name string) int {
	if keyword == "" {
		return 0
	}
	if strings.Contains(name, keyword) {
		return substringScore
	}
	if score, ok := subsequenceScore(keyword, name); ok {
		return score
	}
	if strings.Contains(initialsOf(name), keyword) {
		return initialsScore
	}
	return 0
}

// subsequenceScore matches keyword greedily left-to-right in name. Density
// is the keyword length over the span of matched positions, so tightly
// clustered matches score higher than ones scattered across the name.
func subsequenceScore(keyword, name string) (int, bool) {
	first, last := -1, -1
	pos := 0
	for _, c := range []byte(keyword) {
		i := strings.IndexByte(name[pos:], c)
		if i < 0 {
			return 0, false
		}
		hit := pos + i
		if first < 0 {
			first = hit
		}
		last = hit
		pos = hit + 1
	}
	span := last - first + 1
	density := float64(len(keyword)) / float64(span)
	score := subsequenceMin + int(density*float64(substringScore-subsequenceMin-1))
	return score, true
}

func initialsOf(name string) string {
	var b strings.Builder
	start := true
	for i := 0; i < len(name); i++ {
		if strings.IndexByte(segmentSeparators, name[i]) >= 0 {
			start = true
			continue
		}
		if start {
			b.WriteByte(name[i])
			start = false
		}
	}
	return b.String()
}
