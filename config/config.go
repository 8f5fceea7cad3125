package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ragchat service.
type Config struct {
	Chat      ChatConfig      `yaml:"chat"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Index     IndexConfig     `yaml:"index"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChatConfig holds conversation engine configuration.
type ChatConfig struct {
	Model          string  `yaml:"model"`           // default chat model
	Temperature    float64 `yaml:"temperature"`     // sampling temperature in [0,2]
	OpeningMessage string  `yaml:"opening_message"` // assistant turn seeded on start
	Topic          string  `yaml:"topic"`           // what the assistant answers questions about
	Fallback       string  `yaml:"fallback"`        // where to send users when context is insufficient
	HistoryWindow  int     `yaml:"history_window"`  // last N turns fed into prompts
	TimeoutSecs    int     `yaml:"timeout_secs"`    // per-call bound on external requests
}

// LLMConfig holds chat completion backend configuration.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`    // OpenAI-compatible endpoint
	APIKeyEnv string `yaml:"api_key_env"` // environment variable for the API key
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "mock"
	Model     string `yaml:"model"`    // e.g., "text-embedding-3-small"
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// IndexConfig holds index build configuration.
type IndexConfig struct {
	Path         string   `yaml:"path"` // vector index artifact location
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkWords   int      `yaml:"chunk_words"`
	OverlapParas int      `yaml:"overlap_paras"`
}

// ServerConfig holds HTTP front end configuration.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	SessionTTLMins int    `yaml:"session_ttl_mins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			OpeningMessage: "Hello! How can I help you today?",
			Topic:          "the knowledge base",
			Fallback:       "the official website or support channel",
			HistoryWindow:  20,
			TimeoutSecs:    60,
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Retrieve: RetrieveConfig{
			TopK: 3,
		},
		Index: IndexConfig{
			Path:         "vector_store.db",
			Includes:     []string{"**/*.md", "**/*.txt"},
			Excludes:     []string{"**/node_modules/**", "**/.git/**"},
			ChunkWords:   300,
			OverlapParas: 1,
		},
		Server: ServerConfig{
			Addr:           ":5001",
			SessionTTLMins: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragchat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragchat.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragchat", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
