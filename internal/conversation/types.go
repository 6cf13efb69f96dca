// Package conversation holds the transcript types shared by the chat,
// grading and storage layers.
package conversation

import (
	"fmt"
	"strings"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleBoss   Role = "boss"
	RoleSystem Role = "system" // narrative marker, never sent upstream
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBoss, RoleSystem:
		return true
	}
	return false
}

// Message is a single transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Outcome is how the employee ended the negotiation.
type Outcome string

const (
	OutcomeWon    Outcome = "won"
	OutcomeGaveUp Outcome = "gave_up"
)

// ParseOutcome validates an outcome tag.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeWon, OutcomeGaveUp:
		return Outcome(s), nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Status is the lifecycle state of a stored conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// WithoutSystem returns the entries that may be sent to the gateway.
func WithoutSystem(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// LastUserMessage returns the most recent user-authored entry.
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// Render formats the transcript as alternating "Employee:"/"Boss:" lines
// separated by blank lines. System entries are skipped.
func Render(msgs []Message) string {
	var b strings.Builder
	for _, m := range WithoutSystem(msgs) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		speaker := "Boss"
		if m.Role == RoleUser {
			speaker = "Employee"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
