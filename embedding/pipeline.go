package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/chunker"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/pagetext"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/files"
)

const (
	// DefaultEmbedBatchSize is the number of chunk texts sent per embedding call.
	DefaultEmbedBatchSize = 32

	// DefaultUpsertBatchSize is the number of vectors written per upsert call.
	DefaultUpsertBatchSize = 100
)

// Request identifies the processed text to embed.
type Request struct {
	ProjectID     string
	SourceID      string
	SourceName    string
	ProcessedText string
}

// Pipeline chunks processed text, persists the chunks and embeds them.
type Pipeline struct {
	embedder    ai.Embedder
	vectors     storage.VectorStore
	layout      *files.Layout
	chunker     *chunker.Chunker
	policy      Policy
	embedBatch  int
	upsertBatch int
	retry       RetryPolicy
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunker sets the chunker. Default is chunker.New().
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("chunker required")
		}
		p.chunker = c
		return nil
	}
}

// WithPolicy sets the embedding policy. Default is DefaultPolicy().
func WithPolicy(policy Policy) Option {
	return func(p *Pipeline) error {
		if policy == nil {
			return errors.New("policy required")
		}
		p.policy = policy
		return nil
	}
}

// WithEmbedBatchSize sets how many chunk texts are embedded per call.
// Default is 32.
func WithEmbedBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("embed batch size must be positive, got %d", n)
		}
		p.embedBatch = n
		return nil
	}
}

// WithUpsertBatchSize sets how many vectors are written per upsert.
// Default is 100.
func WithUpsertBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("upsert batch size must be positive, got %d", n)
		}
		p.upsertBatch = n
		return nil
	}
}

// WithRetryPolicy sets the retry policy for embedding calls.
// Default is DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.retry = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// New creates an embedding pipeline.
func New(embedder ai.Embedder, vectors storage.VectorStore, layout *files.Layout, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	if vectors == nil {
		return nil, errors.New("vector store required")
	}
	if layout == nil {
		return nil, errors.New("file layout required")
	}

	p := &Pipeline{
		embedder:    embedder,
		vectors:     vectors,
		layout:      layout,
		policy:      DefaultPolicy(),
		embedBatch:  DefaultEmbedBatchSize,
		upsertBatch: DefaultUpsertBatchSize,
		retry:       DefaultRetryPolicy,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.chunker == nil {
		c, err := chunker.New(chunker.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.chunker = c
	}
	p.logger = p.logger.With("component", "embedding")
	return p, nil
}

// Chunker returns the chunker the pipeline splits text with.
func (p *Pipeline) Chunker() *chunker.Chunker {
	return p.chunker
}

// Model returns the embedding model new vectors are produced with.
func (p *Pipeline) Model() string {
	return p.embedder.Model()
}

// CountTokens counts the tokens of text with the pipeline's local tokenizer.
func (p *Pipeline) CountTokens(text string) int {
	return p.chunker.Tokenizer().Count(text)
}

// ProcessEmbeddings decides whether to embed the processed text and, if so,
// chunks it, writes the chunk files and upserts one vector per chunk under
// the project's namespace.
//
// It never fails: every error is logged and reported as IsEmbedded false
// with a Reason.
func (p *Pipeline) ProcessEmbeddings(ctx context.Context, req Request) core.EmbeddingInfo {
	logger := p.logger.With("project", req.ProjectID, "source", req.SourceID)
	start := time.Now()

	info, err := p.process(ctx, req, logger)
	if err != nil {
		info.IsEmbedded = false
		info.ChunkCount = 0
		info.Model = ""
		info.Reason = err.Error()
		logger.Warn("source not embedded", "err", err)
		return info
	}
	if !info.IsEmbedded {
		logger.Info("source left unembedded", "reason", info.Reason, "tokens", info.TokenCount)
		return info
	}

	logger.Info("source embedded",
		"tokens", info.TokenCount,
		"chunks", info.ChunkCount,
		"elapsed", time.Since(start))
	return info
}

func (p *Pipeline) process(ctx context.Context, req Request, logger *slog.Logger) (core.EmbeddingInfo, error) {
	var info core.EmbeddingInfo
	if req.ProjectID == "" {
		return info, core.ErrEmptyProjectID
	}
	if req.SourceID == "" {
		return info, core.ErrEmptySourceID
	}

	doc, err := pagetext.Parse(req.ProcessedText)
	if err != nil {
		return info, fmt.Errorf("reading processed text: %w", err)
	}
	text := doc.Text()
	info.TokenCount = p.CountTokens(text)

	embed, reason := p.policy.ShouldEmbed(info.TokenCount, utf8.RuneCountInString(text))
	if !embed {
		// Anything left from an earlier, larger version would outlive its text.
		p.DeleteEmbeddings(ctx, req.ProjectID, req.SourceID)
		info.Reason = reason
		return info, nil
	}

	chunks, err := p.chunker.Parse(req.ProcessedText, req.SourceID, req.SourceName)
	if err != nil {
		return info, fmt.Errorf("chunking: %w", err)
	}
	if len(chunks) == 0 {
		p.DeleteEmbeddings(ctx, req.ProjectID, req.SourceID)
		info.Reason = "no text to embed"
		return info, nil
	}

	if err := p.writeChunks(req.ProjectID, req.SourceID, doc, chunks); err != nil {
		return info, fmt.Errorf("writing chunk files: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return info, err
	}

	// Remove vectors of chunk ids that the new chunking no longer produces.
	err = p.vectors.Delete(ctx, req.ProjectID, storage.DeleteRequest{
		Filter: storage.Filter{SourceID: req.SourceID},
	})
	if err != nil {
		return info, fmt.Errorf("deleting stale vectors: %w", err)
	}

	records, err := p.embedChunks(ctx, chunks, logger)
	if err != nil {
		return info, err
	}

	for start := 0; start < len(records); start += p.upsertBatch {
		end := min(start+p.upsertBatch, len(records))
		if err := p.vectors.Upsert(ctx, req.ProjectID, records[start:end]); err != nil {
			return info, fmt.Errorf("upserting vectors: %w", err)
		}
	}

	info.IsEmbedded = true
	info.ChunkCount = len(chunks)
	info.Model = p.embedder.Model()
	info.EmbeddedAt = time.Now().UTC()
	return info, nil
}

// writeChunks replaces the source's chunk files. Each file carries the
// processed document's header followed by the chunk's own keys.
func (p *Pipeline) writeChunks(projectID, sourceID string, doc *pagetext.Document, chunks []core.Chunk) error {
	if err := p.layout.DeleteChunks(projectID, sourceID); err != nil {
		return err
	}
	for _, c := range chunks {
		content := pagetext.FormatChunkFile(&pagetext.ChunkFile{
			Type:    doc.Type,
			Header:  doc.Header,
			ChunkID: c.ID,
			Page:    c.PageNumber,
			Index:   c.Index,
			Tokens:  c.TokenCount,
			Text:    c.Text,
		})
		if err := p.layout.WriteChunk(projectID, sourceID, c.Index, content); err != nil {
			return err
		}
	}
	return nil
}

// embedChunks embeds chunk texts in batches and returns normalized records.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []core.Chunk, logger *slog.Logger) ([]core.VectorRecord, error) {
	records := make([]core.VectorRecord, 0, len(chunks))
	dim := 0

	for start := 0; start < len(chunks); start += p.embedBatch {
		end := min(start+p.embedBatch, len(chunks))
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := RetryWithBackoff(ctx, p.retry, func(ctx context.Context) error {
			var err error
			vectors, err = p.embedder.EmbedTexts(ctx, texts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", start+1, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrCountMismatch, len(batch), len(vectors))
		}
		if err := validateVectors(vectors, dim); err != nil {
			return nil, err
		}
		dim = len(vectors[0])

		for i, c := range batch {
			records = append(records, core.VectorRecord{
				ID:     c.ID,
				Values: NormalizeVector(vectors[i]),
				Metadata: core.VectorMetadata{
					SourceID:   c.SourceID,
					PageNumber: c.PageNumber,
					Text:       c.Text,
					SourceName: c.SourceName,
				},
			})
		}
		logger.Debug("embedded batch", "from", start+1, "to", end, "of", len(chunks))
	}
	return records, nil
}

// DeleteEmbeddings removes a source's vectors and chunk files. The two
// deletions run independently; failures are logged and returned joined.
func (p *Pipeline) DeleteEmbeddings(ctx context.Context, projectID, sourceID string) error {
	if projectID == "" || sourceID == "" {
		return core.ErrInvalidSource
	}
	logger := p.logger.With("project", projectID, "source", sourceID)

	vecErr := p.vectors.Delete(ctx, projectID, storage.DeleteRequest{
		Filter: storage.Filter{SourceID: sourceID},
	})
	if vecErr != nil {
		logger.Error("failed to delete vectors", "err", vecErr)
		vecErr = fmt.Errorf("deleting vectors: %w", vecErr)
	}

	fileErr := p.layout.DeleteChunks(projectID, sourceID)
	if fileErr != nil {
		logger.Error("failed to delete chunk files", "err", fileErr)
		fileErr = fmt.Errorf("deleting chunk files: %w", fileErr)
	}

	return errors.Join(vecErr, fileErr)
}
