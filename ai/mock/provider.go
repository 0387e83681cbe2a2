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

package mock

import "github.com/poiesic/lectern/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock instances of every service.
type MockProvider struct {
	embedder    *MockEmbedder
	summarizer  *MockSummarizer
	vision      *MockImageExtractor
	transcriber *MockTranscriber
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use the GetMock* methods to access concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:    NewMockEmbedder(),
		summarizer:  NewMockSummarizer(),
		vision:      NewMockImageExtractor(),
		transcriber: NewMockTranscriber(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// Any nil service is reported as not configured.
func NewMockProviderWithServices(embedder *MockEmbedder, summarizer *MockSummarizer, vision *MockImageExtractor, transcriber *MockTranscriber) *MockProvider {
	return &MockProvider{
		embedder:    embedder,
		summarizer:  summarizer,
		vision:      vision,
		transcriber: transcriber,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	if p.embedder == nil {
		return nil
	}
	return p.embedder
}

// Summarizer returns the mock summarizer, or nil.
func (p *MockProvider) Summarizer() ai.Summarizer {
	if p.summarizer == nil {
		return nil
	}
	return p.summarizer
}

// ImageExtractor returns the mock image extractor, or nil.
func (p *MockProvider) ImageExtractor() ai.ImageExtractor {
	if p.vision == nil {
		return nil
	}
	return p.vision
}

// Transcriber returns the mock transcriber, or nil.
func (p *MockProvider) Transcriber() ai.Transcriber {
	if p.transcriber == nil {
		return nil
	}
	return p.transcriber
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockSummarizer returns the underlying mock summarizer for test assertions.
func (p *MockProvider) GetMockSummarizer() *MockSummarizer {
	return p.summarizer
}
