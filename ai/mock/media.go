package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poiesic/lectern/ai"
)

// MockImageExtractor is a test double for ai.ImageExtractor.
type MockImageExtractor struct {
	// ExtractImageFunc is called by ExtractImage if set.
	ExtractImageFunc func(ctx context.Context, image []byte, mimeType string) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockImageExtractor creates a mock image extractor with default behavior.
func NewMockImageExtractor() *MockImageExtractor {
	return &MockImageExtractor{}
}

// ExtractImage describes the image by its type and size.
func (m *MockImageExtractor) ExtractImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractImageFunc != nil {
		return m.ExtractImageFunc(ctx, image, mimeType)
	}
	return fmt.Sprintf("An image of type %s, %d bytes.", mimeType, len(image)), nil
}

// Model returns "mock-vision".
func (m *MockImageExtractor) Model() string {
	return "mock-vision"
}

// CallCount returns the number of times ExtractImage was called.
func (m *MockImageExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockTranscriber is a test double for ai.Transcriber.
type MockTranscriber struct {
	// TranscribeFunc is called by Transcribe if set.
	// If nil, the audio bytes are returned as the transcript text.
	TranscribeFunc func(ctx context.Context, audio []byte, filename string) (*ai.Transcript, error)

	mu        sync.Mutex
	callCount int
}

// NewMockTranscriber creates a mock transcriber with default behavior.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

// Transcribe treats the audio bytes as already-transcribed text.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (*ai.Transcript, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, filename)
	}
	return &ai.Transcript{
		Text:     string(audio),
		Language: "en",
		Duration: time.Duration(len(audio)) * 50 * time.Millisecond,
		Model:    "mock-transcriber",
	}, nil
}

// CallCount returns the number of times Transcribe was called.
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
