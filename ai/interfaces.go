package ai

import (
	"context"
	"time"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model names the embedding model, recorded on every embedded source.
	Model() string
}

// Summary is a short description of a source's content.
type Summary struct {
	Summary   string
	KeyTopics []string
	Model     string
}

// Summarizer produces a Summary of processed text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*Summary, error)
}

// ImageExtractor turns an image into text: a description of what it shows
// plus any legible text in it.
type ImageExtractor interface {
	ExtractImage(ctx context.Context, image []byte, mimeType string) (string, error)
	Model() string
}

// Transcript is the text of an audio recording.
type Transcript struct {
	Text     string
	Language string
	Duration time.Duration
	Model    string
}

// Transcriber converts speech in an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*Transcript, error)
}

// AIProvider aggregates the AI services used during ingestion and retrieval.
// Summarizer, ImageExtractor and Transcriber return nil when the provider
// was configured without them.
type AIProvider interface {
	Embedder() Embedder
	Summarizer() Summarizer
	ImageExtractor() ImageExtractor
	Transcriber() Transcriber
	Close() error
}
