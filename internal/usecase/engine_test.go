package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// stubChat is a test double for port.ChatModel. It records every request
// and answers via the reply function.
type stubChat struct {
	calls    int
	requests []port.ChatRequest
	reply    func(req port.ChatRequest) (*port.ChatResult, error)
}

func (s *stubChat) Complete(_ context.Context, req port.ChatRequest) (*port.ChatResult, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.reply != nil {
		return s.reply(req)
	}
	return &port.ChatResult{Content: "ok", Usage: domain.UsageStats{TotalTokens: 10}}, nil
}

var _ port.ChatModel = (*stubChat)(nil)

type stubCatalog struct {
	models []string
	err    error
}

func (s *stubCatalog) ListModels(context.Context) ([]string, error) {
	return s.models, s.err
}

type stubRetriever struct {
	passages []domain.Passage
	err      error
	queries  []string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, k int) ([]domain.Passage, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.passages) > k {
		return s.passages[:k], nil
	}
	return s.passages, nil
}

func newTestEngine(chat *stubChat, retriever *stubRetriever) *Engine {
	return NewEngine(Options{
		Chat:           chat,
		Catalog:        &stubCatalog{models: []string{"gpt-4o-mini", "gpt-4o"}},
		Retriever:      retriever,
		Model:          domain.ModelConfig{Name: "gpt-4o-mini", Temperature: 0.7},
		OpeningMessage: "Hello! How can I help you today?",
	})
}

func TestStartConversationIdempotent(t *testing.T) {
	e := newTestEngine(&stubChat{}, &stubRetriever{})

	first := e.StartConversation()
	second := e.StartConversation()

	if first != second {
		t.Errorf("opening message changed between resets: %q vs %q", first, second)
	}

	history := e.History()
	if len(history) != 1 {
		t.Fatalf("expected exactly 1 turn after repeated resets, got %d", len(history))
	}
	if history[0].Speaker != domain.SpeakerAssistant {
		t.Errorf("expected assistant opening turn, got %s", history[0].Speaker)
	}
	if history[0].Text != first {
		t.Errorf("stored turn %q does not match returned opening %q", history[0].Text, first)
	}
}

func TestRespondPassThroughCondensation(t *testing.T) {
	chat := &stubChat{}
	retriever := &stubRetriever{}
	e := newTestEngine(chat, retriever)

	// Empty history: no condense call may happen, only the answer call.
	if _, err := e.Respond(context.Background(), "What is a WW benefit?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chat.calls != 1 {
		t.Fatalf("expected exactly 1 backend call for an empty history, got %d", chat.calls)
	}
	if len(retriever.queries) != 1 || retriever.queries[0] != "What is a WW benefit?" {
		t.Errorf("expected the raw utterance as the retrieval query, got %v", retriever.queries)
	}
}

func TestRespondValidation(t *testing.T) {
	chat := &stubChat{}
	e := newTestEngine(chat, &stubRetriever{})
	e.StartConversation()
	before := len(e.History())

	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := e.Respond(context.Background(), input)
		if err == nil {
			t.Fatalf("Respond(%q): expected error", input)
		}
		if kind := domain.KindOf(err); kind != domain.KindValidation {
			t.Errorf("Respond(%q): expected validation error, got %s", input, kind)
		}
	}

	if chat.calls != 0 {
		t.Errorf("validation must reject before any backend call, got %d calls", chat.calls)
	}
	if got := len(e.History()); got != before {
		t.Errorf("memory mutated by rejected input: %d -> %d turns", before, got)
	}
}

func TestRespondNoMutationOnGenerationFailure(t *testing.T) {
	chat := &stubChat{
		reply: func(port.ChatRequest) (*port.ChatResult, error) {
			return nil, errors.New("rate limited")
		},
	}
	e := newTestEngine(chat, &stubRetriever{})
	e.StartConversation()
	before := len(e.History())

	_, err := e.Respond(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := domain.KindOf(err); kind != domain.KindGenerationFailure {
		t.Errorf("expected generation failure, got %s", kind)
	}
	if got := len(e.History()); got != before {
		t.Errorf("failed turn polluted memory: %d -> %d turns", before, got)
	}
}

func TestRespondNoMutationOnRetrievalFailure(t *testing.T) {
	retriever := &stubRetriever{
		err: domain.Ef(domain.KindRetrievalUnavailable, "index gone"),
	}
	e := newTestEngine(&stubChat{}, retriever)
	before := len(e.History())

	_, err := e.Respond(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := domain.KindOf(err); kind != domain.KindRetrievalUnavailable {
		t.Errorf("expected retrieval unavailable, got %s", kind)
	}
	if got := len(e.History()); got != before {
		t.Errorf("failed turn polluted memory: %d -> %d turns", before, got)
	}
}

func TestChangeModelValidation(t *testing.T) {
	chat := &stubChat{}
	e := newTestEngine(chat, &stubRetriever{})

	tests := []struct {
		name        string
		model       string
		temperature float64
	}{
		{name: "unknown model", model: "bogus-model", temperature: 0.5},
		{name: "temperature too high", model: "gpt-4o", temperature: 2.5},
		{name: "temperature negative", model: "gpt-4o", temperature: -0.1},
		{name: "empty model", model: "  ", temperature: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ChangeModel(context.Background(), tt.model, tt.temperature)
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := domain.KindOf(err); kind != domain.KindValidation {
				t.Errorf("expected validation error, got %s", kind)
			}
		})
	}

	// The previous backend must stay active after every rejected swap.
	if got := e.ActiveModel().Name; got != "gpt-4o-mini" {
		t.Fatalf("rejected swap changed active model to %q", got)
	}

	if _, err := e.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := chat.requests[len(chat.requests)-1]
	if last.Model != "gpt-4o-mini" {
		t.Errorf("respond used model %q after rejected swap", last.Model)
	}
}

func TestChangeModelSwap(t *testing.T) {
	chat := &stubChat{}
	e := newTestEngine(chat, &stubRetriever{})

	if err := e.ChangeModel(context.Background(), "gpt-4o", 1.2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active := e.ActiveModel()
	if active.Name != "gpt-4o" || active.Temperature != 1.2 {
		t.Fatalf("unexpected active config after swap: %+v", active)
	}

	if _, err := e.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := chat.requests[len(chat.requests)-1]
	if last.Model != "gpt-4o" || last.Temperature != 1.2 {
		t.Errorf("respond did not use the swapped backend: %+v", last)
	}
}

func TestClearMemoryKeepsModel(t *testing.T) {
	e := newTestEngine(&stubChat{}, &stubRetriever{})
	e.StartConversation()

	if err := e.ChangeModel(context.Background(), "gpt-4o", 0.3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.ClearMemory()
	if len(e.History()) != 0 {
		t.Error("expected empty memory after clear")
	}
	if got := e.ActiveModel().Name; got != "gpt-4o" {
		t.Errorf("clear memory changed the model to %q", got)
	}
}

func TestRespondEndToEnd(t *testing.T) {
	// The stub echoes the prompt it received so the test can verify what
	// context reached the generator.
	chat := &stubChat{
		reply: func(req port.ChatRequest) (*port.ChatResult, error) {
			if len(req.Messages) == 1 {
				// Single-message request: the condense rewrite.
				return &port.ChatResult{
					Content: "What city did the user say they live in (Amsterdam)?",
					Usage:   domain.UsageStats{TotalTokens: 7},
				}, nil
			}
			var sb strings.Builder
			for _, m := range req.Messages {
				sb.WriteString(m.Content)
				sb.WriteString("\n")
			}
			return &port.ChatResult{Content: sb.String(), Usage: domain.UsageStats{TotalTokens: 11}}, nil
		},
	}
	retriever := &stubRetriever{
		passages: []domain.Passage{
			{Content: "Amsterdam is the capital of the Netherlands.", Source: "https://example.org/ams", Rank: 1},
		},
	}
	e := newTestEngine(chat, retriever)

	resp, err := e.Respond(context.Background(), "I live in Amsterdam")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.History()) != 2 {
		t.Fatalf("expected 2 turns after the first respond, got %d", len(e.History()))
	}
	if resp.Usage.TotalTokens != 11 {
		t.Errorf("expected usage 11 for a pass-through turn, got %d", resp.Usage.TotalTokens)
	}

	resp, err = e.Respond(context.Background(), "What city did I mention?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The retrieval query must be the condensed, standalone rewrite.
	lastQuery := retriever.queries[len(retriever.queries)-1]
	if !strings.Contains(lastQuery, "Amsterdam") {
		t.Errorf("condensed query lost the context: %q", lastQuery)
	}

	// The generator must have seen the prior turns; the echoed answer
	// therefore contains the first utterance.
	if !strings.Contains(resp.Answer, "I live in Amsterdam") {
		t.Errorf("generation prompt missing prior turns:\n%s", resp.Answer)
	}

	// Usage sums the condense and generation calls of this turn only.
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("expected summed usage 18, got %d", resp.Usage.TotalTokens)
	}

	if len(e.History()) != 4 {
		t.Errorf("expected 4 turns after two responds, got %d", len(e.History()))
	}
}

func TestRespondPassagesCapped(t *testing.T) {
	retriever := &stubRetriever{
		passages: []domain.Passage{
			{Content: "a", Rank: 1}, {Content: "b", Rank: 2}, {Content: "c", Rank: 3},
			{Content: "d", Rank: 4}, {Content: "e", Rank: 5},
		},
	}
	e := newTestEngine(&stubChat{}, retriever)

	resp, err := e.Respond(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Passages) > 3 {
		t.Errorf("expected at most 3 passages, got %d", len(resp.Passages))
	}
}
