// Package config reads and writes the lectern configuration file.
//
// The file is TOML. Every key is optional; missing keys keep the values of
// Default. A missing file is the same as an empty one.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/chunker"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/search"
)

// FileName is the name of the configuration file inside the data directory.
const FileName = "lectern.toml"

// Vector store backends.
const (
	VectorStoreBadger   = "badger"
	VectorStorePgvector = "pgvector"
)

// Tokenizers.
const (
	TokenizerTiktoken = "tiktoken"
	TokenizerEstimate = "estimate"
)

// Config is the whole configuration file.
type Config struct {
	DataDir     string            `toml:"data_dir"`
	LogLevel    string            `toml:"log_level"`
	AI          AIConfig          `toml:"ai"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Search      SearchConfig      `toml:"search"`
	Extract     ExtractConfig     `toml:"extract"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
}

// AIConfig selects the model services.
type AIConfig struct {
	EmbeddingHost      string `toml:"embedding_host"`
	ChatHost           string `toml:"chat_host"`
	TranscriptionHost  string `toml:"transcription_host"`
	APIKey             string `toml:"api_key"`
	EmbeddingModel     string `toml:"embedding_model"`
	ChatModel          string `toml:"chat_model"`
	VisionModel        string `toml:"vision_model"`
	TranscriptionModel string `toml:"transcription_model"`
	SummaryMaxChars    int    `toml:"summary_max_chars"`
}

// SchedulerConfig sizes the task scheduler.
type SchedulerConfig struct {
	PoolSize  int `toml:"pool_size"`
	Retention int `toml:"retention"`
}

// ChunkingConfig sets the chunk token budget.
type ChunkingConfig struct {
	TargetTokens int     `toml:"target_tokens"`
	Tolerance    float64 `toml:"tolerance"`
	Tokenizer    string  `toml:"tokenizer"`
}

// EmbeddingConfig sets the embedding policy and batching.
type EmbeddingConfig struct {
	// Always embeds every source regardless of size.
	Always          bool `toml:"always"`
	MinTokens       int  `toml:"min_tokens"`
	MinChars        int  `toml:"min_chars"`
	BatchSize       int  `toml:"batch_size"`
	UpsertBatchSize int  `toml:"upsert_batch_size"`
	MaxAttempts     int  `toml:"max_attempts"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	TopK           int `toml:"top_k"`
	QueryCacheSize int `toml:"query_cache_size"`
}

// ExtractConfig tunes the processors.
type ExtractConfig struct {
	PDFConcurrency int     `toml:"pdf_concurrency"`
	CSVRowsPerPage int     `toml:"csv_rows_per_page"`
	LinkRateLimit  float64 `toml:"link_rate_limit"`
	LinkBurst      int     `toml:"link_burst"`
	UserAgent      string  `toml:"user_agent"`
}

// VectorStoreConfig selects where vectors live.
type VectorStoreConfig struct {
	Backend string `toml:"backend"`
	DSN     string `toml:"dsn"`
	Table   string `toml:"table"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		DataDir:  defaultDataDir(),
		LogLevel: "info",
		AI: AIConfig{
			EmbeddingHost:      aiDefaults.EmbeddingHost,
			ChatHost:           aiDefaults.ChatHost,
			EmbeddingModel:     aiDefaults.EmbeddingModel,
			ChatModel:          aiDefaults.ChatModel,
			VisionModel:        aiDefaults.VisionModel,
			TranscriptionModel: aiDefaults.TranscriptionModel,
			SummaryMaxChars:    aiDefaults.SummaryMaxChars,
		},
		Scheduler: SchedulerConfig{
			PoolSize:  4,
			Retention: 1000,
		},
		Chunking: ChunkingConfig{
			TargetTokens: chunker.DefaultTargetTokens,
			Tolerance:    chunker.DefaultTolerance,
			Tokenizer:    TokenizerTiktoken,
		},
		Embedding: EmbeddingConfig{
			MinTokens:       embedding.DefaultMinTokens,
			BatchSize:       embedding.DefaultEmbedBatchSize,
			UpsertBatchSize: embedding.DefaultUpsertBatchSize,
			MaxAttempts:     embedding.DefaultRetryPolicy.MaxAttempts,
		},
		Search: SearchConfig{
			TopK:           search.DefaultTopK,
			QueryCacheSize: 256,
		},
		Extract: ExtractConfig{
			PDFConcurrency: 4,
			CSVRowsPerPage: extract.DefaultRowsPerPage,
			LinkRateLimit:  2,
			LinkBurst:      4,
		},
		VectorStore: VectorStoreConfig{
			Backend: VectorStoreBadger,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lectern"
	}
	return filepath.Join(home, ".lectern")
}

// Load reads the file at path over Default. A missing file yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks values that cannot be repaired with a default.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch strings.ToLower(c.VectorStore.Backend) {
	case "", VectorStoreBadger:
	case VectorStorePgvector:
		if c.VectorStore.DSN == "" {
			errs = append(errs, errors.New("vector_store.dsn is required for pgvector"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector_store.backend %q", c.VectorStore.Backend))
	}
	switch strings.ToLower(c.Chunking.Tokenizer) {
	case "", TokenizerTiktoken, TokenizerEstimate:
	default:
		errs = append(errs, fmt.Errorf("unknown chunking.tokenizer %q", c.Chunking.Tokenizer))
	}
	if c.Chunking.Tolerance < 0 || c.Chunking.Tolerance >= 1 {
		errs = append(errs, fmt.Errorf("chunking.tolerance must be in [0,1), got %v", c.Chunking.Tolerance))
	}
	if c.Embedding.MinTokens < 0 || c.Embedding.MinChars < 0 {
		errs = append(errs, errors.New("embedding minimums cannot be negative"))
	}
	return errors.Join(errs...)
}

// AIConfig returns the ai.Config described by the file.
func (c *Config) AIConfig() *ai.Config {
	return &ai.Config{
		EmbeddingHost:      c.AI.EmbeddingHost,
		ChatHost:           c.AI.ChatHost,
		TranscriptionHost:  c.AI.TranscriptionHost,
		APIKey:             c.AI.APIKey,
		EmbeddingModel:     c.AI.EmbeddingModel,
		ChatModel:          c.AI.ChatModel,
		VisionModel:        c.AI.VisionModel,
		TranscriptionModel: c.AI.TranscriptionModel,
		SummaryMaxChars:    c.AI.SummaryMaxChars,
	}
}

// Policy returns the embedding policy described by the file.
func (c *Config) Policy() embedding.Policy {
	if c.Embedding.Always {
		return embedding.AlwaysEmbed()
	}
	return embedding.Threshold{MinTokens: c.Embedding.MinTokens, MinChars: c.Embedding.MinChars}
}

// Tokenizer returns the tokenizer described by the file.
func (c *Config) Tokenizer() chunker.Tokenizer {
	if strings.ToLower(c.Chunking.Tokenizer) == TokenizerEstimate {
		return chunker.Estimator{CharsPerToken: 4}
	}
	return chunker.DefaultTokenizer()
}
