// Package usecase contains the retrieval-augmented conversation engine:
// condense the utterance into a standalone query, retrieve supporting
// passages, generate a grounded answer, and record both turns.
package usecase

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"ragchat/internal/conversation"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// Backend pairs the chat client with the model configuration active for a
// call. Respond snapshots one Backend pointer up front so a concurrent
// ChangeModel never affects a turn already in flight.
type Backend struct {
	Chat   port.ChatModel
	Config domain.ModelConfig
}

// Options configures a new Engine.
type Options struct {
	Chat      port.ChatModel
	Catalog   port.ModelCatalog
	Retriever port.Retriever

	Model domain.ModelConfig

	// OpeningMessage is the assistant turn seeded by StartConversation.
	OpeningMessage string

	// TopK is the retrieval fan-out. Defaults to 3.
	TopK int

	// HistoryWindow bounds how many stored turns are fed into prompts.
	// The stored memory itself is unbounded. Defaults to 20.
	HistoryWindow int

	// CallTimeout bounds each external call (condense, retrieve, generate).
	// Defaults to 60s.
	CallTimeout time.Duration

	// Topic and Fallback feed the answer generator's system instruction.
	Topic    string
	Fallback string
}

// Engine owns the turn-taking protocol and the model-selection state for
// one session. It imposes no internal threading: the caller must serialize
// calls against one engine, which the HTTP transport does with a
// per-session lock.
type Engine struct {
	backend atomic.Pointer[Backend]

	catalog   port.ModelCatalog
	retriever port.Retriever
	condenser *Condenser
	answerer  *AnswerGenerator
	memory    *conversation.Memory

	opening string
	topK    int
	window  int
	timeout time.Duration
}

// NewEngine builds a session engine. The session starts ACTIVE with empty
// memory; StartConversation seeds the opening message.
func NewEngine(opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	if opts.OpeningMessage == "" {
		opts.OpeningMessage = "Hello! How can I help you today?"
	}

	e := &Engine{
		catalog:   opts.Catalog,
		retriever: opts.Retriever,
		condenser: NewCondenser(),
		answerer:  NewAnswerGenerator(opts.Topic, opts.Fallback),
		memory:    conversation.NewMemory(),
		opening:   opts.OpeningMessage,
		topK:      opts.TopK,
		window:    opts.HistoryWindow,
		timeout:   opts.CallTimeout,
	}
	e.backend.Store(&Backend{Chat: opts.Chat, Config: opts.Model})
	return e
}

// StartConversation resets the memory and seeds the opening assistant turn.
// Idempotent: calling it repeatedly always leaves exactly one turn.
func (e *Engine) StartConversation() string {
	e.memory.Clear()
	e.memory.Append(domain.SpeakerAssistant, e.opening)
	return e.opening
}

// Respond runs the full per-turn pipeline. On any component failure the
// turn aborts cleanly: the error is classified and memory is untouched, so
// failed turns never pollute the conversation history.
func (e *Engine) Respond(ctx context.Context, userText string) (*domain.ChatResponse, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, domain.Ef(domain.KindValidation, "message must not be empty")
	}

	backend := e.backend.Load()
	history := e.memory.Window(e.window)

	condenseCtx, cancel := context.WithTimeout(ctx, e.timeout)
	query, condenseUsage, err := e.condenser.Condense(condenseCtx, backend.Chat, backend.Config, history, userText)
	cancel()
	if err != nil {
		return nil, err
	}

	retrieveCtx, cancel := context.WithTimeout(ctx, e.timeout)
	passages, err := e.retriever.Retrieve(retrieveCtx, query, e.topK)
	cancel()
	if err != nil {
		return nil, err
	}

	generateCtx, cancel := context.WithTimeout(ctx, e.timeout)
	answer, answerUsage, err := e.answerer.Generate(generateCtx, backend.Chat, backend.Config, query, passages, history)
	cancel()
	if err != nil {
		return nil, err
	}

	e.memory.Append(domain.SpeakerUser, userText)
	e.memory.Append(domain.SpeakerAssistant, answer)

	return &domain.ChatResponse{
		Answer:   answer,
		Passages: passages,
		Usage:    condenseUsage.Add(answerUsage),
	}, nil
}

// ChangeModel validates and atomically replaces the active generation
// backend. On any validation failure the previous backend stays active.
func (e *Engine) ChangeModel(ctx context.Context, name string, temperature float64) error {
	if temperature < 0 || temperature > 2 {
		return domain.Ef(domain.KindValidation, "temperature %.2f out of range [0, 2]", temperature)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Ef(domain.KindValidation, "model name must not be empty")
	}

	models, err := e.Models(ctx)
	if err != nil {
		return err
	}
	known := false
	for _, m := range models {
		if m == name {
			known = true
			break
		}
	}
	if !known {
		return domain.Ef(domain.KindValidation, "unknown model %q", name)
	}

	current := e.backend.Load()
	e.backend.Store(&Backend{
		Chat:   current.Chat,
		Config: domain.ModelConfig{Name: name, Temperature: temperature},
	})
	return nil
}

// Models returns the provider's current chat model identifiers.
func (e *Engine) Models(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	models, err := e.catalog.ListModels(ctx)
	if err != nil {
		return nil, domain.E(domain.KindUnexpected, err)
	}
	return models, nil
}

// ActiveModel reports the model configuration used for subsequent calls.
func (e *Engine) ActiveModel() domain.ModelConfig {
	return e.backend.Load().Config
}

// ClearMemory empties the conversation log without touching the model
// configuration. The session stays usable.
func (e *Engine) ClearMemory() {
	e.memory.Clear()
}

// History returns a copy of the stored turns.
func (e *Engine) History() []domain.Turn {
	return e.memory.History()
}
