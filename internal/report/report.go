// Package report assembles the final loss assessment report and renders it as
// a downloadable text document.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
)

const (
	Title         = "Insurance Loss Assessment Report"
	Disclaimer    = "This report was generated by AI and should be reviewed by a qualified claims adjuster. The information provided is for guidance purposes only and does not constitute professional advice."
	notSpecified  = "Not specified"
	noAnalysis    = "No analysis available."
	exportDateFmt = "January 2, 2006"
)

// UserDetails identifies the claimant.
type UserDetails struct {
	Name         string `json:"name,omitempty"`
	PolicyNumber string `json:"policyNumber,omitempty"`
	IncidentDate string `json:"incidentDate,omitempty"`
	Location     string `json:"location,omitempty"`
}

// Info carries what the report needs besides the analysis.
type Info struct {
	Model       string
	Claim       assessment.Metadata
	Images      []assessment.ImageResult
	GeneratedAt time.Time
}

// Report is an assembled assessment. The analysis fields are repeated at the
// top level, defaulted to "Not specified".
type Report struct {
	assessment.NormalizedAnalysis

	Metadata           Metadata                 `json:"metadata"`
	ExecutiveSummary   ExecutiveSummary         `json:"executiveSummary"`
	DetailedAnalysis   DetailedAnalysis         `json:"detailedAnalysis"`
	Summary            assessment.Summary       `json:"summary"`
	Claim              assessment.Metadata      `json:"claim"`
	IndividualAnalyses []assessment.ImageResult `json:"individualAnalyses,omitempty"`
	Disclaimer         string                   `json:"disclaimer"`
}

type Metadata struct {
	Title           string    `json:"title"`
	GeneratedAt     time.Time `json:"generatedAt"`
	Claimant        string    `json:"claimant"`
	PolicyNumber    string    `json:"policyNumber"`
	IncidentDate    string    `json:"incidentDate"`
	Location        string    `json:"location"`
	AssessmentModel string    `json:"assessmentModel"`
}

type ExecutiveSummary struct {
	DamageType        string `json:"damageType"`
	Severity          string `json:"severity"`
	KeyFindings       string `json:"keyFindings"`
	ImmediateConcerns string `json:"immediateConcerns"`
}

// DetailedAnalysis holds the analysis fields as extracted, without defaults.
type DetailedAnalysis struct {
	DamageAssessment   string `json:"damageAssessment"`
	SeverityEvaluation string `json:"severityEvaluation"`
	AffectedComponents string `json:"affectedComponents"`
	RepairRequirements string `json:"repairRequirements"`
	ProbableCauses     string `json:"probableCauses"`
	SafetyAssessment   string `json:"safetyAssessment"`
	RecommendedActions string `json:"recommendedActions"`
}

// Assemble builds a report from an analysis. It never fails; missing values
// are replaced by defaults.
func Assemble(a assessment.NormalizedAnalysis, details UserDetails, info Info) Report {
	generatedAt := info.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	top := assessment.NormalizedAnalysis{
		DamageType:         orDefault(a.DamageType, notSpecified),
		SeverityLevel:      orDefault(a.SeverityLevel, notSpecified),
		AffectedAreas:      orDefault(a.AffectedAreas, notSpecified),
		RepairRequirements: orDefault(a.RepairRequirements, notSpecified),
		PotentialCauses:    orDefault(a.PotentialCauses, notSpecified),
		SafetyConcerns:     orDefault(a.SafetyConcerns, notSpecified),
		ImmediateActions:   orDefault(a.ImmediateActions, notSpecified),
		FullReport:         orDefault(a.FullReport, noAnalysis),
	}

	var images []assessment.ImageResult
	for _, img := range info.Images {
		if img.Analysis != nil {
			a := *img.Analysis
			img.Analysis = &a
		}
		images = append(images, img)
	}

	return Report{
		NormalizedAnalysis: top,
		Metadata: Metadata{
			Title:           Title,
			GeneratedAt:     generatedAt.UTC(),
			Claimant:        orDefault(details.Name, notSpecified),
			PolicyNumber:    orDefault(details.PolicyNumber, notSpecified),
			IncidentDate:    orDefault(details.IncidentDate, orDefault(info.Claim.Date, notSpecified)),
			Location:        orDefault(details.Location, orDefault(info.Claim.Location, notSpecified)),
			AssessmentModel: orDefault(info.Model, notSpecified),
		},
		ExecutiveSummary: ExecutiveSummary{
			DamageType:        top.DamageType,
			Severity:          top.SeverityLevel,
			KeyFindings:       top.AffectedAreas,
			ImmediateConcerns: top.SafetyConcerns,
		},
		DetailedAnalysis: DetailedAnalysis{
			DamageAssessment:   a.DamageType,
			SeverityEvaluation: a.SeverityLevel,
			AffectedComponents: a.AffectedAreas,
			RepairRequirements: a.RepairRequirements,
			ProbableCauses:     a.PotentialCauses,
			SafetyAssessment:   a.SafetyConcerns,
			RecommendedActions: a.ImmediateActions,
		},
		Summary:            assessment.Summarize(a),
		Claim:              info.Claim,
		IndividualAnalyses: images,
		Disclaimer:         Disclaimer,
	}
}

// ExportText renders the report as a plain-text document.
func ExportText(r Report) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# %s", r.Metadata.Title)
	line("Generated: %s", r.Metadata.GeneratedAt.Format(exportDateFmt))
	line("")
	line("## Claim Information")
	line("- Claimant: %s", r.Metadata.Claimant)
	line("- Policy Number: %s", r.Metadata.PolicyNumber)
	line("- Incident Date: %s", r.Metadata.IncidentDate)
	line("- Location: %s", r.Metadata.Location)
	if r.Claim.LossType != "" {
		line("- Loss Type: %s", r.Claim.LossType)
	}
	if r.Claim.IncidentType != "" {
		line("- Incident Type: %s", r.Claim.IncidentType)
	}
	line("- Assessment Model: %s", r.Metadata.AssessmentModel)
	line("")
	line("## Executive Summary")
	line("**Damage Type**: %s", r.ExecutiveSummary.DamageType)
	line("**Severity Level**: %s", r.ExecutiveSummary.Severity)
	line("**Key Findings**: %s", r.ExecutiveSummary.KeyFindings)
	line("**Immediate Concerns**: %s", r.ExecutiveSummary.ImmediateConcerns)
	line("**Estimated Cost**: %s", r.Summary.EstimatedCost)
	line("")
	line("## Detailed Analysis")

	for _, s := range []struct{ title, body string }{
		{"Damage Assessment", r.DetailedAnalysis.DamageAssessment},
		{"Severity Evaluation", r.DetailedAnalysis.SeverityEvaluation},
		{"Affected Components", r.DetailedAnalysis.AffectedComponents},
		{"Repair Requirements", r.DetailedAnalysis.RepairRequirements},
		{"Probable Causes", r.DetailedAnalysis.ProbableCauses},
		{"Safety Assessment", r.DetailedAnalysis.SafetyAssessment},
		{"Recommended Actions", r.DetailedAnalysis.RecommendedActions},
	} {
		line("")
		line("### %s", s.title)
		line("%s", s.body)
	}

	if len(r.IndividualAnalyses) > 0 {
		line("")
		line("## Images")
		for _, img := range r.IndividualAnalyses {
			if img.Succeeded() {
				line("- Image %d (%s): analyzed", img.ImageNumber, img.Name)
			} else {
				line("- Image %d (%s): failed: %s", img.ImageNumber, img.Name, img.Error)
			}
		}
	}

	line("")
	line("## Complete AI Analysis")
	line("%s", r.FullReport)
	line("")
	line("---")
	line("")
	line("%s", r.Disclaimer)
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// SearchText is the text embedded for similarity search: the claim type
// followed by the condensed findings.
func SearchText(r Report) string {
	var parts []string
	add := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Loss type", r.Claim.LossType)
	add("Incident type", r.Claim.IncidentType)
	add("Damage", r.Summary.DamageType)
	add("Severity", r.Summary.Severity)
	add("Affected areas", strings.Join(r.Summary.AffectedAreas, ", "))
	add("Estimated cost", r.Summary.EstimatedCost.Display)
	add("Safety", r.Summary.Safety)
	return strings.Join(parts, "\n")
}
