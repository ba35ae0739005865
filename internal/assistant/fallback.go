package assistant

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	greetingReply = "Hello! I'm your Loss Assessment Assistant. I can help you understand insurance claims, damage assessment, and answer questions about your report. How can I assist you today?"
	helpReply     = "I can help you with:\n• Understanding your damage assessment report\n• Explaining insurance claim processes\n• Providing guidance on next steps\n• Answering questions about loss types and severity\n• Offering general advice on property damage assessment\n\nWhat would you like to know?"
	thanksReply   = "You're welcome! I'm here to help. If you have any more questions about your assessment or the claim process, feel free to ask."
	genericReply  = "I understand you're asking about loss assessment. To give you the best advice, could you please:\n1. Upload damage images for analysis, or\n2. Ask specific questions about your existing report, or\n3. Tell me what type of damage you're dealing with?"
)

var greeting = regexp.MustCompile(`\b(hello|hi|hey)\b`)

// FallbackReply answers message from local state only.
func FallbackReply(message string, rc *ReportContext) string {
	msg := strings.ToLower(message)

	if rc != nil {
		s := rc.Summary
		switch {
		case strings.Contains(msg, "summary") || strings.Contains(msg, "summarize"):
			safety := strings.TrimSpace(s.Safety)
			if safety == "" {
				safety = "Please review the full report for safety details"
			} else {
				safety = truncate(safety, 150)
			}
			return fmt.Sprintf("Based on your assessment report:\n\n**Damage Type**: %s\n**Severity Level**: %s\n**Key Areas Affected**: %s\n**Estimated Cost**: %s\n**Safety Concerns**: %s\n**Recommended Actions**: %s",
				s.DamageType, s.Severity, strings.Join(s.AffectedAreas, ", "), s.EstimatedCost, safety, strings.Join(s.Recommendations, "; "))

		case strings.Contains(msg, "next step") || strings.Contains(msg, "what should i do"):
			return fmt.Sprintf("Here are the recommended next steps based on your %s severity assessment:\n\n1. **%s**\n2. **%s**\n3. **%s**\n\nWould you like more specific guidance on any of these steps?",
				strings.ToLower(s.Severity),
				nth(s.Recommendations, 0, "Document all damage thoroughly"),
				nth(s.Recommendations, 1, "Contact your insurance provider"),
				nth(s.Recommendations, 2, "Secure the property to prevent further damage"))

		case strings.Contains(msg, "claim") || strings.Contains(msg, "insurance"):
			return fmt.Sprintf("For your %s with %s severity:\n\n**Documents to prepare for claim:**\n• This assessment report\n• All damage photos\n• Policy information\n• Police/incident reports (if applicable)\n• Repair estimates (if available)\n\n**Recommended claim process:**\n1. Contact your insurer within 24 hours\n2. Submit this report as supporting documentation\n3. Follow their specific claim procedures",
				strings.ToLower(s.DamageType), strings.ToLower(s.Severity))
		}
	}

	switch {
	case greeting.MatchString(msg):
		return greetingReply
	case strings.Contains(msg, "help") || strings.Contains(msg, "what can you do"):
		return helpReply
	case strings.Contains(msg, "thank"):
		return thanksReply
	}
	return genericReply
}

func nth(items []string, i int, def string) string {
	if i < len(items) && strings.TrimSpace(items[i]) != "" {
		return items[i]
	}
	return def
}
