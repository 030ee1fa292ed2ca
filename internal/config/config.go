package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel               = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens           = 8192
	DefaultContextWindowTokens = 200000
	DefaultMaxHistoryShare     = 0.5
	DefaultRecentTurnsPreserve = 3
	DefaultGuardMaxRetries     = 1
	DefaultRecencyLambda       = 0.08
	DefaultRecencyWindowDays   = 14
	DefaultVectorWeight        = 0.7
	DefaultTextWeight          = 0.3
	DefaultSnippetMaxChars     = 240
	DefaultRetrieveLimit       = 10
)

type Config struct {
	Provider   ProviderConfig   `json:"provider"`
	Compaction CompactionConfig `json:"compaction"`
	Retrieval  RetrievalConfig  `json:"retrieval"`
}

type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

type CompactionConfig struct {
	ContextWindowTokens    int     `json:"contextWindowTokens,omitempty"`
	MaxHistoryShare        float64 `json:"maxHistoryShare,omitempty"`
	RecentTurnsPreserve    int     `json:"recentTurnsPreserve,omitempty"`
	QualityGuardEnabled    *bool   `json:"qualityGuardEnabled,omitempty"`
	QualityGuardMaxRetries int     `json:"qualityGuardMaxRetries,omitempty"`
}

type RetrievalConfig struct {
	DBPath           string        `json:"dbPath,omitempty"`
	EmbeddingModel   string        `json:"embeddingModel,omitempty"`
	VectorWeight     float64       `json:"vectorWeight,omitempty"`
	TextWeight       float64       `json:"textWeight,omitempty"`
	SnippetMaxChars  int           `json:"snippetMaxChars,omitempty"`
	Limit            int           `json:"limit,omitempty"`
	DynamicThreshold bool          `json:"dynamicThreshold"`
	Recency          RecencyConfig `json:"recency"`
}

type RecencyConfig struct {
	Enabled    bool    `json:"enabled"`
	Lambda     float64 `json:"lambda,omitempty"`
	WindowDays int     `json:"windowDays,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Compaction: CompactionConfig{
			ContextWindowTokens:    DefaultContextWindowTokens,
			MaxHistoryShare:        DefaultMaxHistoryShare,
			RecentTurnsPreserve:    DefaultRecentTurnsPreserve,
			QualityGuardMaxRetries: DefaultGuardMaxRetries,
		},
		Retrieval: RetrievalConfig{
			DBPath:          filepath.Join(ConfigDir(), "data", "chunks.db"),
			VectorWeight:    DefaultVectorWeight,
			TextWeight:      DefaultTextWeight,
			SnippetMaxChars: DefaultSnippetMaxChars,
			Limit:           DefaultRetrieveLimit,
			Recency: RecencyConfig{
				Lambda:     DefaultRecencyLambda,
				WindowDays: DefaultRecencyWindowDays,
			},
		},
	}
}

// QualityGuard reports whether the guard is on; unset means enabled.
func (c CompactionConfig) QualityGuard() bool {
	if c.QualityGuardEnabled == nil {
		return true
	}
	return *c.QualityGuardEnabled
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".recall")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("RECALL_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("RECALL_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("RECALL_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if dbPath := os.Getenv("RECALL_DB_PATH"); dbPath != "" {
		cfg.Retrieval.DBPath = dbPath
	}
	if window := os.Getenv("RECALL_CONTEXT_WINDOW"); window != "" {
		if parsed, err := strconv.Atoi(window); err == nil && parsed > 0 {
			cfg.Compaction.ContextWindowTokens = parsed
		}
	}

	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	def := DefaultConfig()
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = def.Provider.MaxTokens
	}
	if cfg.Compaction.ContextWindowTokens <= 0 {
		cfg.Compaction.ContextWindowTokens = def.Compaction.ContextWindowTokens
	}
	if cfg.Compaction.MaxHistoryShare <= 0 || cfg.Compaction.MaxHistoryShare > 1 {
		cfg.Compaction.MaxHistoryShare = def.Compaction.MaxHistoryShare
	}
	if cfg.Compaction.RecentTurnsPreserve < 0 {
		cfg.Compaction.RecentTurnsPreserve = 0
	}
	if cfg.Compaction.QualityGuardMaxRetries < 0 {
		cfg.Compaction.QualityGuardMaxRetries = 0
	}
	if cfg.Retrieval.DBPath == "" {
		cfg.Retrieval.DBPath = def.Retrieval.DBPath
	}
	if cfg.Retrieval.VectorWeight < 0 {
		cfg.Retrieval.VectorWeight = 0
	}
	if cfg.Retrieval.TextWeight < 0 {
		cfg.Retrieval.TextWeight = 0
	}
	if cfg.Retrieval.VectorWeight == 0 && cfg.Retrieval.TextWeight == 0 {
		cfg.Retrieval.VectorWeight = def.Retrieval.VectorWeight
		cfg.Retrieval.TextWeight = def.Retrieval.TextWeight
	}
	if cfg.Retrieval.SnippetMaxChars <= 0 {
		cfg.Retrieval.SnippetMaxChars = def.Retrieval.SnippetMaxChars
	}
	if cfg.Retrieval.Limit <= 0 {
		cfg.Retrieval.Limit = def.Retrieval.Limit
	}
	if cfg.Retrieval.Recency.Lambda < 0 || cfg.Retrieval.Recency.Lambda > 1 {
		cfg.Retrieval.Recency.Lambda = def.Retrieval.Recency.Lambda
	}
	if cfg.Retrieval.Recency.WindowDays < 1 || cfg.Retrieval.Recency.WindowDays > 365 {
		cfg.Retrieval.Recency.WindowDays = def.Retrieval.Recency.WindowDays
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
