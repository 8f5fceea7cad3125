// Package llm provides an OpenAI-compatible chat completions client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"ragchat/internal/port"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
)

// Config configures the OpenAI-compatible chat client.
type Config struct {
	// APIKeyEnv names the environment variable holding the bearer token.
	APIKeyEnv string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	BaseURL string

	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration
}

// Client implements port.ChatModel and port.ModelCatalog over the chat
// completions API. Safe for concurrent use; model and temperature come from
// each request, so one client serves across model swaps.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient reads the API key from the configured environment variable.
// A missing key is reported immediately so startup can fail fast.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Complete sends the messages to the model and returns the first choice
// together with the usage counters from the same response body.
func (c *Client) Complete(ctx context.Context, req port.ChatRequest) (*port.ChatResult, error) {
	body := oaiRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, oaiMessage{Role: m.Role, Content: m.Content})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("llm: decode API response (HTTP %d): %w", resp.StatusCode, err)
	}

	if oaiResp.Error != nil {
		return nil, fmt.Errorf("llm: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("llm: no choices returned (HTTP %d)", resp.StatusCode)
	}

	result := &port.ChatResult{
		Content: strings.TrimSpace(oaiResp.Choices[0].Message.Content),
	}
	result.Usage.PromptTokens = oaiResp.Usage.PromptTokens
	result.Usage.CompletionTokens = oaiResp.Usage.CompletionTokens
	result.Usage.TotalTokens = oaiResp.Usage.TotalTokens
	return result, nil
}

// ListModels returns the chat-capable model identifiers offered by the
// provider, sorted for a stable presentation order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm: models endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var list oaiModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("llm: decode model list: %w", err)
	}

	var models []string
	for _, m := range list.Data {
		if isChatModel(m.ID) {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}

// isChatModel filters out embeddings, audio and other non-chat entries the
// models endpoint mixes into its listing.
func isChatModel(id string) bool {
	if strings.Contains(id, "embedding") || strings.Contains(id, "whisper") ||
		strings.Contains(id, "tts") || strings.Contains(id, "dall-e") {
		return false
	}
	return strings.HasPrefix(id, "gpt") || strings.HasPrefix(id, "o1") ||
		strings.HasPrefix(id, "o3") || strings.Contains(id, "chat")
}

var (
	_ port.ChatModel    = (*Client)(nil)
	_ port.ModelCatalog = (*Client)(nil)
)
