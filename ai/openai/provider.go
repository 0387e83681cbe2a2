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

package openai

import (
	"log/slog"

	"github.com/poiesic/lectern/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// Optional services are nil when their model or host is not configured.
type Provider struct {
	config      *ai.Config
	embedder    *Embedder
	summarizer  *Summarizer
	vision      *ImageExtractor
	transcriber *Transcriber
	logger      *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "openai-provider"),
	}

	var err error
	if p.embedder, err = newEmbedder(config); err != nil {
		return nil, err
	}
	if config.SummariesEnabled() {
		if p.summarizer, err = newSummarizer(config); err != nil {
			return nil, err
		}
	}
	if config.VisionEnabled() {
		if p.vision, err = newImageExtractor(config); err != nil {
			return nil, err
		}
	}
	if config.TranscriptionEnabled() {
		if p.transcriber, err = newTranscriber(config, nil); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("provider ready",
		"embedding_model", config.EmbeddingModel,
		"summaries", p.summarizer != nil,
		"vision", p.vision != nil,
		"transcription", p.transcriber != nil)
	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Summarizer returns the summary service, or nil.
func (p *Provider) Summarizer() ai.Summarizer {
	if p.summarizer == nil {
		return nil
	}
	return p.summarizer
}

// ImageExtractor returns the vision service, or nil.
func (p *Provider) ImageExtractor() ai.ImageExtractor {
	if p.vision == nil {
		return nil
	}
	return p.vision
}

// Transcriber returns the speech-to-text service, or nil.
func (p *Provider) Transcriber() ai.Transcriber {
	if p.transcriber == nil {
		return nil
	}
	return p.transcriber
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
