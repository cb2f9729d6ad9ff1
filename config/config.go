package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge base.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Query     QueryConfig     `yaml:"query"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourceConfig selects which files in the source directory are candidate
// documents. Unrecognized paths are ignored, not errored.
type SourceConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkingConfig bounds chunk size and overlap, in characters.
type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai", "ollama", "mock"
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"` // Environment variable for API key
	Dimension      int    `yaml:"dimension"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LLMConfig holds language-model provider configuration.
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "openai", "openrouter", "ollama"
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// QueryConfig holds retrieval and answer-assembly configuration.
type QueryConfig struct {
	TopK          int    `yaml:"top_k"`
	ContextChars  int    `yaml:"context_chars"`
	EmptyFallback string `yaml:"empty_fallback"`
}

// SyncConfig holds synchronization pass configuration.
type SyncConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Includes: []string{"**/*.txt", "**/*.md", "**/*.markdown", "**/*.go", "**/*.py", "**/*.js", "**/*.ts", "**/*.java", "**/*.rs", "**/*.c", "**/*.h", "**/*.json", "**/*.yaml", "**/*.yml"},
			Excludes: []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/.kb/**", "**/dist/**", "**/build/**", "**/__pycache__/**"},
		},
		Chunking: ChunkingConfig{
			MaxChars:     1200,
			OverlapChars: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Model:          "nomic-embed-text",
			BaseURL:        "",
			APIKeyEnv:      "OPENAI_API_KEY",
			Dimension:      768,
			BatchSize:      64,
			TimeoutSeconds: 120,
		},
		LLM: LLMConfig{
			Provider:       "openrouter",
			Model:          "openai/gpt-4o-mini",
			BaseURL:        "",
			APIKeyEnv:      "OPENROUTER_API_KEY",
			Temperature:    0.2,
			TimeoutSeconds: 120,
		},
		Query: QueryConfig{
			TopK:          3,
			ContextChars:  8000,
			EmptyFallback: "no relevant information found in the knowledge base",
		},
		Sync: SyncConfig{
			Concurrency: 4,
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

// LoadFromDir loads configuration from a directory (looks for kb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "kb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".kb", "config.yaml")
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

// StoreDBPath returns the path to the knowledge base database.
func StoreDBPath(storageDir string) string {
	return filepath.Join(storageDir, "kb.db")
}

// EnsureStorageDir ensures the storage directory exists.
func EnsureStorageDir(storageDir string) error {
	return os.MkdirAll(storageDir, 0755)
}
