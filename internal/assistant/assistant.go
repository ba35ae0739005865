// Package assistant implements the claims chat assistant. Replies come from
// the oracle; when it cannot answer, a canned reply built from the report
// context is used instead so the conversation never breaks.
package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apex/log"

	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

const persona = `You are an expert insurance claims assistant. You help users understand their loss assessment reports, guide them through claim processes, and answer questions about damage assessment.

Your responses should be:
1. Professional yet friendly
2. Clear and concise
3. Helpful and actionable
4. Based on available data`

// Assistant answers chat messages.
type Assistant struct {
	Oracle oracle.VisionOracle
	Now    func() time.Time
}

// New returns an Assistant backed by o.
func New(o oracle.VisionOracle) *Assistant {
	return &Assistant{Oracle: o, Now: time.Now}
}

// Respond records message in the session, asks the oracle and records the
// reply. userDetails, when not nil, is serialized into the system prompt.
// Oracle failures are never returned: a canned reply is used instead.
func (a *Assistant) Respond(ctx context.Context, s *Session, message string, userDetails any) string {
	prior := s.History.messages()
	s.History.Append(Entry{Role: oracle.RoleUser, Content: message, Timestamp: a.now()})

	reply, err := a.Oracle.Chat(ctx, oracle.ChatRequest{
		SystemPrompt: SystemPrompt(s.Context, userDetails),
		History:      prior,
		NewMessage:   message,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"session": s.ID,
			"oracle":  a.Oracle.Name(),
		}).WithError(err).Warn("chat oracle failed, using fallback reply")
		reply = FallbackReply(message, s.Context)
	}

	s.History.Append(Entry{Role: oracle.RoleAssistant, Content: reply, Timestamp: a.now()})
	return reply
}

func (a *Assistant) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// SystemPrompt builds the persona, report digest and user details block.
func SystemPrompt(rc *ReportContext, userDetails any) string {
	prompt := persona
	if rc != nil {
		prompt += "\n\n" + rc.digest()
	}
	if userDetails != nil {
		if data, err := json.Marshal(userDetails); err == nil && string(data) != "null" {
			prompt += "\nUser Details: " + string(data)
		}
	}
	return prompt + "\n\nPlease respond to the user's questions based on this context."
}
