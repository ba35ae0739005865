package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
)

const raw = `**1. Type of Damage:** Hail damage
**2. Severity Level:** High
**3. Affected Areas:** Roof, gutters
**4. Repair Requirements:** Replace shingles, about $4,000
**5. Potential Causes:** Hailstorm
**6. Safety Concerns:** Loose shingles may fall
**7. Recommended Actions:** Tarp the roof`

var generated = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestExportText_ContainsDisclaimerAndClaimant(t *testing.T) {
	a, err := assessment.Normalize(raw)
	require.NoError(t, err)

	r := Assemble(a, UserDetails{Name: "Priya Sharma", PolicyNumber: "POL-7781"}, Info{Model: "Gemini", GeneratedAt: generated})
	text := ExportText(r)

	assert.Contains(t, text, Disclaimer)
	assert.Contains(t, text, "Priya Sharma")
	assert.Contains(t, text, "- Policy Number: POL-7781")
	assert.Contains(t, text, "Generated: March 14, 2026")
	assert.Contains(t, text, "**Severity Level**: High")
	assert.Contains(t, text, "**Estimated Cost**: $4,000")
	assert.Contains(t, text, "### Recommended Actions\nTarp the roof\n")
	assert.True(t, strings.HasSuffix(text, Disclaimer+"\n"))
}

func TestAssemble_Defaults(t *testing.T) {
	r := Assemble(assessment.NormalizedAnalysis{DamageType: "Fire damage"}, UserDetails{}, Info{GeneratedAt: generated})

	assert.Equal(t, Title, r.Metadata.Title)
	assert.Equal(t, generated, r.Metadata.GeneratedAt)
	assert.Equal(t, "Not specified", r.Metadata.Claimant)
	assert.Equal(t, "Not specified", r.Metadata.PolicyNumber)
	assert.Equal(t, "Not specified", r.Metadata.Location)
	assert.Equal(t, "Not specified", r.Metadata.AssessmentModel)

	assert.Equal(t, "Fire damage", r.DamageType)
	assert.Equal(t, "Not specified", r.SeverityLevel)
	assert.Equal(t, "No analysis available.", r.FullReport)
	assert.Equal(t, "Not specified", r.ExecutiveSummary.Severity)
	assert.Empty(t, r.DetailedAnalysis.SeverityEvaluation)
	assert.Equal(t, Disclaimer, r.Disclaimer)
}

func TestAssemble_ClaimFallbacks(t *testing.T) {
	claim := assessment.Metadata{LossType: "property", IncidentType: "flood", Location: "Chennai", Date: "2026-02-01"}
	r := Assemble(assessment.NormalizedAnalysis{}, UserDetails{Name: "A"}, Info{Claim: claim})

	assert.Equal(t, "Chennai", r.Metadata.Location)
	assert.Equal(t, "2026-02-01", r.Metadata.IncidentDate)
	assert.False(t, r.Metadata.GeneratedAt.IsZero())

	text := ExportText(r)
	assert.Contains(t, text, "- Loss Type: property")
	assert.Contains(t, text, "- Incident Type: flood")
}

func TestAssemble_FailedImageScenario(t *testing.T) {
	one, err := assessment.Normalize("**1. Type of Damage:** Dent\n**2. Severity Level:** Low\n")
	require.NoError(t, err)
	three, err := assessment.Normalize("**1. Type of Damage:** Dent\n**2. Severity Level:** High\n")
	require.NoError(t, err)

	batch := assessment.BatchResult{Images: []assessment.ImageResult{
		{ImageNumber: 1, Name: "front.jpg", Analysis: &one},
		{ImageNumber: 2, Name: "side.jpg", Error: "Gemini API Error (500): internal"},
		{ImageNumber: 3, Name: "rear.jpg", Analysis: &three},
	}}
	combined := assessment.CombineBatch(batch)
	require.NotNil(t, combined)

	r := Assemble(*combined, UserDetails{Name: "Sam"}, Info{Images: batch.Images, Model: "Gemini"})
	assert.Equal(t, "High", r.SeverityLevel)
	assert.Equal(t, "Dent", r.DamageType)
	require.Len(t, r.IndividualAnalyses, 3)

	text := ExportText(r)
	assert.Contains(t, text, "- Image 1 (front.jpg): analyzed")
	assert.Contains(t, text, "- Image 2 (side.jpg): failed: Gemini API Error (500): internal")
	assert.Contains(t, text, "- Image 3 (rear.jpg): analyzed")
	assert.Contains(t, text, "=== Analysis from Image 3 ===")
}

func TestReport_JSONShape(t *testing.T) {
	r := Assemble(assessment.NormalizedAnalysis{SeverityLevel: "Low"}, UserDetails{}, Info{GeneratedAt: generated})
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Low", m["severityLevel"])
	assert.Contains(t, m, "executiveSummary")
	assert.Contains(t, m, "detailedAnalysis")
	assert.Equal(t, Disclaimer, m["disclaimer"])
	assert.NotContains(t, m, "individualAnalyses")
}

func TestSearchText(t *testing.T) {
	a, err := assessment.Normalize(raw)
	require.NoError(t, err)

	r := Assemble(a, UserDetails{}, Info{Claim: assessment.Metadata{LossType: "property", IncidentType: "storm"}, GeneratedAt: generated})
	text := SearchText(r)

	assert.True(t, strings.HasPrefix(text, "Loss type: property\nIncident type: storm\n"))
	assert.Contains(t, text, "Severity: High")
	assert.Contains(t, text, "Estimated cost: $4,000")
	assert.NotContains(t, text, "Tarp the roof")
}

func TestSearchText_SkipsEmptyFields(t *testing.T) {
	r := Assemble(assessment.NormalizedAnalysis{}, UserDetails{}, Info{GeneratedAt: generated})
	assert.NotContains(t, SearchText(r), "Loss type")
	assert.NotContains(t, SearchText(r), "Estimated cost")
}

func TestAssemble_CopiesImageAnalyses(t *testing.T) {
	a := &assessment.NormalizedAnalysis{DamageType: "Hail damage", SeverityLevel: "High"}
	images := []assessment.ImageResult{{ImageNumber: 1, Name: "roof.jpg", Analysis: a}}

	r := Assemble(*a, UserDetails{Name: "A"}, Info{Images: images, GeneratedAt: generated})

	a.SeverityLevel = "Low"
	images[0].Name = "other.jpg"

	require.Len(t, r.IndividualAnalyses, 1)
	assert.Equal(t, "roof.jpg", r.IndividualAnalyses[0].Name)
	assert.Equal(t, "High", r.IndividualAnalyses[0].Analysis.SeverityLevel)
	assert.NotSame(t, a, r.IndividualAnalyses[0].Analysis)
}
