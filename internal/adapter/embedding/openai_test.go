package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestOpenAIEmbedderBatching(t *testing.T) {
	var batchSizes []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		batchSizes = append(batchSizes, len(req.Input))

		data := make([]embeddingData, len(req.Input))
		for i := range req.Input {
			data[i] = embeddingData{Embedding: []float32{float32(i), 1}, Index: i}
		}
		json.NewEncoder(w).Encode(embeddingResponse{Data: data})
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	e, err := NewOpenAIEmbedder("OPENAI_API_KEY", "text-embedding-3-small", Options{
		BaseURL:   srv.URL,
		Dimension: 2,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}

	embeddings, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(embeddings) != 5 {
		t.Errorf("expected 5 embeddings, got %d", len(embeddings))
	}
	if !reflect.DeepEqual(batchSizes, []int{2, 2, 1}) {
		t.Errorf("unexpected batch sizes %v", batchSizes)
	}
}

func TestOpenAIEmbedderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Error: &apiError{Message: "invalid model", Type: "invalid_request_error"},
		})
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	e, err := NewOpenAIEmbedder("OPENAI_API_KEY", "bogus", Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}

	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewOpenAIEmbedderMissingKey(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_MISSING_KEY", "")
	_, err := NewOpenAIEmbedder("RAGCHAT_TEST_MISSING_KEY", "text-embedding-3-small", Options{})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestOpenAIEmbedderDimensionDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	tests := []struct {
		model string
		want  int
	}{
		{model: "text-embedding-3-small", want: 1536},
		{model: "text-embedding-3-large", want: 3072},
		{model: "text-embedding-ada-002", want: 1536},
	}
	for _, tt := range tests {
		e, err := NewOpenAIEmbedder("OPENAI_API_KEY", tt.model, Options{})
		if err != nil {
			t.Fatalf("NewOpenAIEmbedder(%s): %v", tt.model, err)
		}
		if e.Dimension() != tt.want {
			t.Errorf("%s: dimension = %d, want %d", tt.model, e.Dimension(), tt.want)
		}
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)

	first, err := e.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := e.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("mock embedder not deterministic")
	}
	for _, v := range first {
		if len(v) != 8 {
			t.Errorf("expected dimension 8, got %d", len(v))
		}
	}
}
