// Package conversation holds the per-session dialogue state: an ordered,
// append-only log of user and assistant turns.
package conversation

import (
	"time"

	"ragchat/internal/domain"
)

// Memory is the ordered turn log for one session. It enforces no upper
// bound; callers window the history when building prompts.
//
// Memory is not safe for concurrent use. The transport serializes access to
// a session, matching the one-in-flight-call-per-session contract.
type Memory struct {
	turns []domain.Turn
}

// NewMemory returns an empty conversation memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds a turn at the end of the log.
func (m *Memory) Append(speaker domain.Speaker, text string) {
	m.turns = append(m.turns, domain.Turn{
		Speaker: speaker,
		Text:    text,
		Time:    time.Now(),
	})
}

// History returns a copy of the full turn sequence in insertion order.
// Mutating the returned slice does not affect the memory.
func (m *Memory) History() []domain.Turn {
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of stored turns.
func (m *Memory) Len() int {
	return len(m.turns)
}

// Clear empties the log. Idempotent.
func (m *Memory) Clear() {
	m.turns = nil
}

// Window returns a copy of the last n turns, or all turns when n <= 0 or
// the log is shorter than n.
func (m *Memory) Window(n int) []domain.Turn {
	if n <= 0 || len(m.turns) <= n {
		return m.History()
	}
	out := make([]domain.Turn, n)
	copy(out, m.turns[len(m.turns)-n:])
	return out
}
