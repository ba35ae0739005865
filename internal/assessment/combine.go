package assessment

import (
	"fmt"
	"regexp"
	"strings"
)

// Per-field limits on the number of merged items.
const (
	MaxAffectedAreas      = 10
	MaxRepairRequirements = 8
	MaxPotentialCauses    = 6
	MaxSafetyConcerns     = 5
	MaxImmediateActions   = 7
)

const itemSeparator = "; "

// Splits list-like sections. Dashes only separate when used as bullets, so
// "water-damaged" stays whole.
var itemDelimiters = regexp.MustCompile(`(?m)[•*\n,;]|^[ \t]*[-–]+|[ \t][-–]+(?:[ \t]|$)`)

// Combine merges several analyses into one. It returns nil for no input and
// the sole analysis unchanged for one.
func Combine(results []NormalizedAnalysis) *NormalizedAnalysis {
	labels := make([]int, len(results))
	for i := range results {
		labels[i] = i + 1
	}
	return combine(results, labels)
}

// CombineBatch merges the successful analyses of a batch. Report sections keep
// the original image numbers, so a failed image leaves a gap in the numbering.
func CombineBatch(b BatchResult) *NormalizedAnalysis {
	var results []NormalizedAnalysis
	var labels []int
	for _, r := range b.Images {
		if r.Analysis == nil {
			continue
		}
		results = append(results, *r.Analysis)
		labels = append(labels, r.ImageNumber)
	}
	return combine(results, labels)
}

func combine(results []NormalizedAnalysis, labels []int) *NormalizedAnalysis {
	switch len(results) {
	case 0:
		return nil
	case 1:
		only := results[0]
		return &only
	}

	pick := func(get func(NormalizedAnalysis) string) []string {
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = get(r)
		}
		return out
	}

	return &NormalizedAnalysis{
		DamageType:         combineDamageTypes(pick(func(a NormalizedAnalysis) string { return a.DamageType })),
		SeverityLevel:      maxSeverity(pick(func(a NormalizedAnalysis) string { return a.SeverityLevel })),
		AffectedAreas:      mergeItems(pick(func(a NormalizedAnalysis) string { return a.AffectedAreas }), MaxAffectedAreas),
		RepairRequirements: mergeItems(pick(func(a NormalizedAnalysis) string { return a.RepairRequirements }), MaxRepairRequirements),
		PotentialCauses:    mergeItems(pick(func(a NormalizedAnalysis) string { return a.PotentialCauses }), MaxPotentialCauses),
		SafetyConcerns:     mergeItems(pick(func(a NormalizedAnalysis) string { return a.SafetyConcerns }), MaxSafetyConcerns),
		ImmediateActions:   mergeItems(pick(func(a NormalizedAnalysis) string { return a.ImmediateActions }), MaxImmediateActions),
		FullReport:         combineReports(pick(func(a NormalizedAnalysis) string { return a.FullReport }), labels),
	}
}

func combineDamageTypes(types []string) string {
	var distinct []string
	seen := make(map[string]bool)
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, t)
	}

	switch len(distinct) {
	case 0:
		return ""
	case 1:
		return distinct[0]
	}
	return "Multiple damage types identified: " + strings.Join(distinct, ", ")
}

// SplitItems breaks a list-like section into trimmed, non-empty items.
func SplitItems(s string) []string {
	var items []string
	for _, part := range itemDelimiters.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func mergeItems(values []string, limit int) string {
	var items []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, item := range SplitItems(v) {
			if seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, item)
		}
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return strings.Join(items, itemSeparator)
}

func combineReports(reports []string, labels []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comprehensive Analysis from %d Images:\n\n", len(reports))
	for i, r := range reports {
		if strings.TrimSpace(r) == "" {
			r = "No detailed analysis available."
		}
		fmt.Fprintf(&b, "=== Analysis from Image %d ===\n%s\n\n", labels[i], r)
	}
	fmt.Fprintf(&b, "=== Combined Assessment ===\nThis assessment combines findings from %d images to provide a comprehensive view of the damage.", len(reports))
	return b.String()
}
