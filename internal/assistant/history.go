package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

// MaxHistory is the number of chat entries kept per session.
const MaxHistory = 10

// Entry is one chat message.
type Entry struct {
	Role      oracle.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// History is a bounded chat log; the oldest entries are evicted first.
type History struct {
	entries []Entry
	limit   int
}

// NewHistory returns an empty history holding at most limit entries.
// A limit below 1 means MaxHistory.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = MaxHistory
	}
	return &History{limit: limit}
}

// Append adds an entry and evicts the oldest ones beyond the limit.
func (h *History) Append(e Entry) {
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Clear drops every entry.
func (h *History) Clear() { h.entries = nil }

func (h *History) messages() []oracle.Message {
	out := make([]oracle.Message, len(h.entries))
	for i, e := range h.entries {
		out[i] = oracle.Message{Role: e.Role, Content: e.Content}
	}
	return out
}

// Transcript renders entries as "<Role> (<timestamp>): <content>" blocks
// separated by blank lines.
func Transcript(entries []Entry) string {
	blocks := make([]string, len(entries))
	for i, e := range entries {
		who := "Assistant"
		if e.Role == oracle.RoleUser {
			who = "You"
		}
		blocks[i] = fmt.Sprintf("%s (%s): %s", who, e.Timestamp.Format("2006-01-02 15:04:05"), e.Content)
	}
	return strings.Join(blocks, "\n\n")
}
