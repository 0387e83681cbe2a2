// Package mock provides test double implementations of AI service interfaces.
//
// The mocks allow tests to run without external AI services and behave
// deterministically. All of them are safe for concurrent use, since the
// ingestion pipeline calls them from scheduler workers.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vec, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: unit-length bag-of-words vectors, so shared words mean higher similarity
//   - MockSummarizer: first sentence plus the first long words as topics
//   - MockImageExtractor: a one-line description of the image's type and size
//   - MockTranscriber: the audio bytes read back as text
package mock
