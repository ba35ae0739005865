package assessment

import (
	"fmt"
	"sort"
	"strings"
)

// Metadata is the claim form submitted with the photos.
type Metadata struct {
	LossType     string            `json:"lossType"`
	IncidentType string            `json:"incidentType,omitempty"`
	Location     string            `json:"location,omitempty"`
	Date         string            `json:"date,omitempty"`
	Description  string            `json:"description,omitempty"`
	Details      map[string]string `json:"details,omitempty"` // category-specific, e.g. vehicleMake
}

// IncidentTypes lists the valid incident types per loss type.
var IncidentTypes = map[string][]string{
	"property":         {"fire", "flood", "earthquake", "theft", "vandalism", "storm", "water_leakage"},
	"vehicle":          {"collision", "hail", "flood", "fire", "theft", "vandalism", "natural_disaster"},
	"commercial":       {"fire", "flood", "equipment_breakdown", "theft", "vandalism", "storm"},
	"agricultural":     {"crop_damage", "livestock", "equipment", "drought", "flood", "storm", "pest_infestation"},
	"natural_disaster": {"hurricane", "earthquake", "flood", "tornado", "cyclone", "landslide", "tsunami"},
}

// ValidationError reports input rejected before any model call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the loss type and, when given, that the incident type
// belongs to it.
func (m Metadata) Validate() error {
	lossType := strings.TrimSpace(m.LossType)
	if lossType == "" {
		return &ValidationError{Field: "lossType", Message: "loss type is required"}
	}
	incidents, ok := IncidentTypes[lossType]
	if !ok {
		return &ValidationError{Field: "lossType", Message: fmt.Sprintf("unknown loss type %q", lossType)}
	}

	incident := strings.TrimSpace(m.IncidentType)
	if incident == "" {
		return nil
	}
	for _, v := range incidents {
		if v == incident {
			return nil
		}
	}
	return &ValidationError{
		Field:   "incidentType",
		Message: fmt.Sprintf("%q is not an incident type for %s losses", incident, lossType),
	}
}

// ValidateImageCount rejects batches with fewer than minImages images.
func ValidateImageCount(n, minImages int) error {
	if minImages < 1 {
		minImages = 1
	}
	if n < minImages {
		return &ValidationError{
			Field:   "images",
			Message: fmt.Sprintf("at least %d image(s) required, got %d", minImages, n),
		}
	}
	return nil
}

// contextLine renders the metadata as the "Additional context" of a prompt.
func (m Metadata) contextLine() string {
	parts := []string{"Loss Type: " + m.LossType}
	if m.IncidentType != "" {
		parts = append(parts, "Incident: "+m.IncidentType)
	}
	if m.Location != "" {
		parts = append(parts, "Location: "+m.Location)
	}
	if m.Date != "" {
		parts = append(parts, "Date: "+m.Date)
	}

	keys := make([]string, 0, len(m.Details))
	for k := range m.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(m.Details[k]); v != "" {
			parts = append(parts, k+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}
