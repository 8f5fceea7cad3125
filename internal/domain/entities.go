package domain

import "time"

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is a single utterance in a conversation. Immutable once appended.
type Turn struct {
	Speaker Speaker
	Text    string
	Time    time.Time
}

// Passage is a retrieved unit of source text with provenance.
// Produced per query, never persisted beyond the turn's response.
type Passage struct {
	Content string `json:"content"`
	Source  string `json:"url"`
	Rank    int    `json:"rank"`
}

// ModelConfig selects the chat model and sampling temperature used for
// condensation and answer generation.
type ModelConfig struct {
	Name        string
	Temperature float64
}

// UsageStats holds the token counts reported by the upstream API for one
// generation call. ChatResponse carries the sum over the calls of a turn.
type UsageStats struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the element-wise sum of two usage reports.
func (u UsageStats) Add(o UsageStats) UsageStats {
	return UsageStats{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// ChatResponse is the result of one full conversation turn.
type ChatResponse struct {
	Answer   string
	Passages []Passage
	Usage    UsageStats
}

// Document is a source file fed to the index builder.
type Document struct {
	ID      string
	Path    string
	Source  string // provenance URL or path reported with retrieved passages
	Content string
}

// Chunk is an indexable piece of a document.
type Chunk struct {
	ID     string
	DocID  string
	Source string
	Text   string
}
