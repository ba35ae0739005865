// Package assessment turns raw vision-model replies into structured damage
// analyses, merges per-image analyses and runs image batches against an oracle.
package assessment

import (
	"fmt"
	"strings"

	"github.com/projectcloudline/loss-assessment-service/internal/extract"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

// NormalizedAnalysis is the fixed-shape record recovered from one model reply,
// or the merge of several. Missing sections are empty strings. FullReport holds
// the reply verbatim.
type NormalizedAnalysis struct {
	DamageType         string `json:"damageType"`
	SeverityLevel      string `json:"severityLevel"`
	AffectedAreas      string `json:"affectedAreas"`
	RepairRequirements string `json:"repairRequirements"`
	PotentialCauses    string `json:"potentialCauses"`
	SafetyConcerns     string `json:"safetyConcerns"`
	ImmediateActions   string `json:"immediateActions"`
	FullReport         string `json:"fullReport"`
}

type field struct {
	start []string
	end   []string
	set   func(*NormalizedAnalysis, string)
}

var fields = []field{
	{
		start: []string{"damage type", "type of damage", "damage observation"},
		end:   []string{"severity", "damage level"},
		set:   func(a *NormalizedAnalysis, v string) { a.DamageType = v },
	},
	{
		start: []string{"severity", "damage level"},
		end:   []string{"affected", "impacted"},
		set:   func(a *NormalizedAnalysis, v string) { a.SeverityLevel = v },
	},
	{
		start: []string{"affected", "impacted"},
		end:   []string{"repair", "fix"},
		set:   func(a *NormalizedAnalysis, v string) { a.AffectedAreas = v },
	},
	{
		start: []string{"repair", "fix", "required"},
		end:   []string{"potential", "cause"},
		set:   func(a *NormalizedAnalysis, v string) { a.RepairRequirements = v },
	},
	{
		start: []string{"potential", "cause", "origin"},
		end:   []string{"safety", "concern"},
		set:   func(a *NormalizedAnalysis, v string) { a.PotentialCauses = v },
	},
	{
		start: []string{"safety", "concern", "risk"},
		end:   []string{"recommendation", "action", "next step"},
		set:   func(a *NormalizedAnalysis, v string) { a.SafetyConcerns = v },
	},
	{
		start: []string{"recommendation", "action", "next step"},
		set:   func(a *NormalizedAnalysis, v string) { a.ImmediateActions = v },
	},
}

// Normalize extracts every section of a raw model reply. It fails only when
// the reply is blank; sections that cannot be found are left empty.
func Normalize(raw string) (NormalizedAnalysis, error) {
	if strings.TrimSpace(raw) == "" {
		return NormalizedAnalysis{}, fmt.Errorf("normalize: %w", oracle.ErrEmptyResponse)
	}

	a := NormalizedAnalysis{FullReport: raw}
	for _, f := range fields {
		f.set(&a, extract.Extract(raw, f.start, f.end))
	}
	return a, nil
}
