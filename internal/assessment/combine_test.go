package assessment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine_EmptyAndSingleton(t *testing.T) {
	assert.Nil(t, Combine(nil))
	assert.Nil(t, Combine([]NormalizedAnalysis{}))

	only := NormalizedAnalysis{
		DamageType:    "Hail damage",
		SeverityLevel: "High",
		AffectedAreas: "roof - gutters",
		FullReport:    "raw",
	}
	got := Combine([]NormalizedAnalysis{only})
	require.NotNil(t, got)
	assert.Equal(t, only, *got)
}

func TestCombine_SeverityLowAndCritical(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{SeverityLevel: "Low"},
		{SeverityLevel: "Critical"},
	})
	require.NotNil(t, got)
	assert.Equal(t, "Critical", got.SeverityLevel)
}

func TestCombine_SeverityIsOrderIndependent(t *testing.T) {
	levels := []string{"moderate", "High", "high", "whatever", "High - roof"}
	var seen []string
	for i := range levels {
		rotated := append(append([]string{}, levels[i:]...), levels[:i]...)
		var in []NormalizedAnalysis
		for _, l := range rotated {
			in = append(in, NormalizedAnalysis{SeverityLevel: l})
		}
		seen = append(seen, Combine(in).SeverityLevel)
	}
	for _, s := range seen {
		assert.Equal(t, "High", s)
	}
}

func TestCombine_UnrecognizedSeverityRanksLow(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{SeverityLevel: "severe-ish"},
		{SeverityLevel: "Moderate"},
	})
	assert.Equal(t, "Moderate", got.SeverityLevel)

	got = Combine([]NormalizedAnalysis{{SeverityLevel: ""}, {SeverityLevel: ""}})
	assert.Empty(t, got.SeverityLevel)
}

func TestCombine_AffectedAreasScenario(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{AffectedAreas: "roof; wall"},
		{AffectedAreas: "wall; floor"},
		{AffectedAreas: "roof"},
	})
	require.NotNil(t, got)
	assert.Equal(t, "roof; wall; floor", got.AffectedAreas)
}

func TestCombine_ListDelimiters(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{RepairRequirements: "- Replace shingles\n- Seal flashing"},
		{RepairRequirements: "• Replace shingles, repaint water-damaged trim * Seal flashing"},
	})
	assert.Equal(t, "Replace shingles; Seal flashing; repaint water-damaged trim", got.RepairRequirements)
}

func TestCombine_DedupIsCaseSensitive(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{PotentialCauses: "Hail"},
		{PotentialCauses: "hail"},
	})
	assert.Equal(t, "Hail; hail", got.PotentialCauses)
}

func TestCombine_Caps(t *testing.T) {
	many := func(prefix string, n int) string {
		items := make([]string, n)
		for i := range items {
			items[i] = fmt.Sprintf("%s %d", prefix, i)
		}
		return strings.Join(items, "\n")
	}
	in := NormalizedAnalysis{
		AffectedAreas:      many("area", 12),
		RepairRequirements: many("repair", 12),
		PotentialCauses:    many("cause", 12),
		SafetyConcerns:     many("hazard", 12),
		ImmediateActions:   many("step", 12),
	}
	got := Combine([]NormalizedAnalysis{in, in})
	require.NotNil(t, got)

	assert.Len(t, strings.Split(got.AffectedAreas, "; "), MaxAffectedAreas)
	assert.Len(t, strings.Split(got.RepairRequirements, "; "), MaxRepairRequirements)
	assert.Len(t, strings.Split(got.PotentialCauses, "; "), MaxPotentialCauses)
	assert.Len(t, strings.Split(got.SafetyConcerns, "; "), MaxSafetyConcerns)
	assert.Len(t, strings.Split(got.ImmediateActions, "; "), MaxImmediateActions)
	assert.True(t, strings.HasPrefix(got.AffectedAreas, "area 0; area 1"))
}

func TestCombine_DamageTypes(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{DamageType: "Hail damage"},
		{DamageType: "hail damage"},
	})
	assert.Equal(t, "Hail damage", got.DamageType)

	got = Combine([]NormalizedAnalysis{
		{DamageType: "Hail damage"},
		{DamageType: "Water damage"},
		{DamageType: ""},
		{DamageType: "Broken window"},
	})
	assert.Equal(t, "Multiple damage types identified: Hail damage, Water damage, Broken window", got.DamageType)
	for _, want := range []string{"Hail damage", "Water damage", "Broken window"} {
		assert.Contains(t, got.DamageType, want)
	}
}

func TestCombine_FullReport(t *testing.T) {
	got := Combine([]NormalizedAnalysis{
		{FullReport: "first"},
		{FullReport: ""},
	})
	want := "Comprehensive Analysis from 2 Images:\n\n" +
		"=== Analysis from Image 1 ===\nfirst\n\n" +
		"=== Analysis from Image 2 ===\nNo detailed analysis available.\n\n" +
		"=== Combined Assessment ===\nThis assessment combines findings from 2 images to provide a comprehensive view of the damage."
	assert.Equal(t, want, got.FullReport)
}

func TestCombineBatch_KeepsImageNumbers(t *testing.T) {
	batch := BatchResult{Images: []ImageResult{
		{ImageNumber: 1, Analysis: &NormalizedAnalysis{FullReport: "one", SeverityLevel: "Low"}},
		{ImageNumber: 2, Error: "Gemini API Error (500): boom"},
		{ImageNumber: 3, Analysis: &NormalizedAnalysis{FullReport: "three", SeverityLevel: "High"}},
	}}

	got := CombineBatch(batch)
	require.NotNil(t, got)
	assert.Equal(t, "High", got.SeverityLevel)
	assert.Contains(t, got.FullReport, "=== Analysis from Image 1 ===\none")
	assert.Contains(t, got.FullReport, "=== Analysis from Image 3 ===\nthree")
	assert.NotContains(t, got.FullReport, "Image 2 ===")
	assert.Contains(t, got.FullReport, "Comprehensive Analysis from 2 Images")

	assert.Nil(t, CombineBatch(BatchResult{Images: []ImageResult{{ImageNumber: 1, Error: "x"}}}))
}

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, RankLow, SeverityRank("low"))
	assert.Equal(t, RankModerate, SeverityRank(" Moderate "))
	assert.Equal(t, RankHigh, SeverityRank("HIGH"))
	assert.Equal(t, RankCritical, SeverityRank("Critical: structural"))
	assert.Equal(t, RankLow, SeverityRank("catastrophic"))
	assert.Equal(t, RankLow, SeverityRank(""))
}

func TestSplitItems(t *testing.T) {
	assert.Equal(t, []string{"roof", "wall", "floor"}, SplitItems("roof; wall,floor"))
	assert.Equal(t, []string{"front bumper", "hood"}, SplitItems("- front bumper\n  - hood"))
	assert.Equal(t, []string{"re-roof", "gutters"}, SplitItems("re-roof – gutters"))
	assert.Empty(t, SplitItems(" ; , \n"))
}
