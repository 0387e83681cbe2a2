package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/lectern/ai"
)

// MockSummarizer is a test double for ai.Summarizer.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, the summary is the first sentence of text and the topics are
	// its first three distinct words longer than four letters.
	SummarizeFunc func(ctx context.Context, text string) (*ai.Summary, error)

	mu        sync.Mutex
	callCount int
}

// NewMockSummarizer creates a mock summarizer with default behavior.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize returns a cheap extractive summary of text.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (*ai.Summary, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}

	text = strings.TrimSpace(text)
	summary := text
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		summary = text[:i+1]
	}

	var topics []string
	seen := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) <= 4 || seen[word] {
			continue
		}
		seen[word] = true
		topics = append(topics, word)
		if len(topics) == 3 {
			break
		}
	}

	return &ai.Summary{Summary: summary, KeyTopics: topics, Model: "mock-summarizer"}, nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
