// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"strings"
)

// DefaultSummaryMaxChars bounds how much processed text is sent to the
// summarizer.
const DefaultSummaryMaxChars = 12000

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the chat service used for summaries and
	// image extraction.
	ChatHost string

	// TranscriptionHost is the base URL for an OpenAI-compatible
	// /audio/transcriptions endpoint. Empty disables transcription.
	TranscriptionHost string

	// APIKey is sent as the bearer token. Local servers ignore it.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model used for summaries. Empty disables summaries.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ChatModel string

	// VisionModel is a multimodal chat model used to read images.
	// Empty disables image extraction.
	VisionModel string

	// TranscriptionModel is the speech-to-text model.
	// Example: "whisper-1"
	TranscriptionModel string

	// SummaryMaxChars truncates the text sent to the summarizer.
	// Default: 12000
	SummaryMaxChars int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithTranscriptionHost sets the transcription service host URL.
func WithTranscriptionHost(host string) ConfigOption {
	return func(c *Config) {
		c.TranscriptionHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithAPIKey sets the bearer token for every service.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the summary model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithVisionModel sets the image extraction model identifier.
func WithVisionModel(model string) ConfigOption {
	return func(c *Config) {
		c.VisionModel = model
	}
}

// WithTranscriptionModel sets the speech-to-text model identifier.
func WithTranscriptionModel(model string) ConfigOption {
	return func(c *Config) {
		c.TranscriptionModel = model
	}
}

// WithSummaryMaxChars bounds the text sent to the summarizer.
func WithSummaryMaxChars(n int) ConfigOption {
	return func(c *Config) {
		c.SummaryMaxChars = n
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// Embedding and chat share one host; transcription is disabled.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:      defaultHost,
		ChatHost:           defaultHost,
		EmbeddingModel:     "embeddinggemma",
		ChatModel:          "qwen2.5:3b",
		VisionModel:        "qwen2.5vl:3b",
		TranscriptionModel: "whisper-1",
		SummaryMaxChars:    DefaultSummaryMaxChars,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
	c.TranscriptionHost = normalizeHost(c.TranscriptionHost)
	if c.SummaryMaxChars <= 0 {
		c.SummaryMaxChars = DefaultSummaryMaxChars
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// SummariesEnabled reports whether a summarizer can be built.
func (c *Config) SummariesEnabled() bool {
	return c.ChatModel != ""
}

// VisionEnabled reports whether an image extractor can be built.
func (c *Config) VisionEnabled() bool {
	return c.VisionModel != ""
}

// TranscriptionEnabled reports whether a transcriber can be built.
func (c *Config) TranscriptionEnabled() bool {
	return c.TranscriptionHost != "" && c.TranscriptionModel != ""
}

// Token returns the bearer token to send, "none" for keyless local servers.
func (c *Config) Token() string {
	if c.APIKey == "" {
		return "none"
	}
	return c.APIKey
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if (c.ChatModel != "" || c.VisionModel != "") && c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required when ChatModel or VisionModel is set")
	}
	return nil
}
