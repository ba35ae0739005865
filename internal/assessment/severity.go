package assessment

import (
	"strings"
	"unicode"
)

// Severity ranks, lowest first. Text that names none of them ranks as Low.
const (
	RankLow      = 1
	RankModerate = 2
	RankHigh     = 3
	RankCritical = 4
)

var severityRanks = map[string]int{
	"low":      RankLow,
	"moderate": RankModerate,
	"high":     RankHigh,
	"critical": RankCritical,
}

// SeverityRank ranks a severity label. The whole label is tried first, then
// its first word, so "High - structural" ranks as High.
func SeverityRank(level string) int {
	key := strings.ToLower(strings.TrimSpace(level))
	if r, ok := severityRanks[key]; ok {
		return r
	}
	words := strings.FieldsFunc(key, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(words) > 0 {
		if r, ok := severityRanks[words[0]]; ok {
			return r
		}
	}
	return RankLow
}

// maxSeverity returns the highest-ranked non-empty label. Among labels sharing
// the top rank the lexicographically smallest trimmed label wins, so the choice
// does not depend on input order.
func maxSeverity(levels []string) string {
	best, bestKey, bestRank := "", "", 0
	for _, level := range levels {
		key := strings.TrimSpace(level)
		if key == "" {
			continue
		}
		rank := SeverityRank(key)
		if rank > bestRank || rank == bestRank && key < bestKey {
			best, bestKey, bestRank = level, key, rank
		}
	}
	return best
}
