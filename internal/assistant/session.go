package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
)

// ReportContext is the part of a report the assistant is grounded on.
type ReportContext struct {
	Summary     assessment.Summary `json:"summary"`
	Model       string             `json:"model,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// ContextFromReport derives the assistant context from a report.
func ContextFromReport(r report.Report) *ReportContext {
	return &ReportContext{
		Summary:     r.Summary,
		Model:       r.Metadata.AssessmentModel,
		GeneratedAt: r.Metadata.GeneratedAt,
	}
}

// Session is one conversation, optionally about a report. A Session is not
// safe for concurrent use.
type Session struct {
	ID      string
	Context *ReportContext
	History *History
}

// NewSession starts a conversation without report context.
func NewSession() *Session {
	return &Session{ID: uuid.NewString(), History: NewHistory(MaxHistory)}
}

// Restore rebuilds a session from stored state.
func Restore(id string, rc *ReportContext, entries []Entry) *Session {
	h := NewHistory(MaxHistory)
	for _, e := range entries {
		h.Append(e)
	}
	return &Session{ID: id, Context: rc, History: h}
}

// SetReport replaces the report context and starts a new conversation.
func (s *Session) SetReport(r report.Report) {
	s.Context = ContextFromReport(r)
	s.History.Clear()
}

// digest renders the context block of the system prompt.
func (rc *ReportContext) digest() string {
	concerns := strings.TrimSpace(rc.Summary.Safety)
	if concerns == "" {
		concerns = "Not specified"
	} else {
		concerns = truncate(concerns, 100)
	}
	return fmt.Sprintf(`Current Report Context:
- Damage Type: %s
- Severity: %s
- Primary Concerns: %s
- Key Recommendations: %s
`, rc.Summary.DamageType, rc.Summary.Severity, concerns, strings.Join(rc.Summary.Recommendations, ", "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
