package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/files"
)

// DefaultTopK is the number of chunks returned by semantic search.
const DefaultTopK = 5

// Searcher retrieves the content of ready sources.
type Searcher struct {
	sources  storage.SourceRepository
	vectors  storage.VectorStore
	layout   *files.Layout
	embedder ai.Embedder
	topK     int
	cache    *lru.Cache[string, []float32]
	monitor  SearchMonitor
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTopK sets how many chunks semantic search returns.
// Default is 5.
func WithTopK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		s.topK = k
		return nil
	}
}

// WithQueryCache keeps the embeddings of the last size distinct queries so
// repeated questions skip the embedding call.
func WithQueryCache(size int) Option {
	return func(s *Searcher) error {
		cache, err := lru.New[string, []float32](size)
		if err != nil {
			return fmt.Errorf("creating query cache: %w", err)
		}
		s.cache = cache
		return nil
	}
}

// WithMonitor installs a monitor that observes every search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	sources storage.SourceRepository,
	vectors storage.VectorStore,
	layout *files.Layout,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if layout == nil {
		return nil, ErrLayoutRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		sources:  sources,
		vectors:  vectors,
		layout:   layout,
		embedder: embedder,
		topK:     DefaultTopK,
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search answers a query against one source.
//
// The source must exist, be ready and be active. A source that was not
// embedded returns its processed text verbatim and ignores the query. An
// embedded source requires a non-empty query and returns its top-k most
// similar chunks.
func (s *Searcher) Search(ctx context.Context, projectID, sourceID, query string) (result *core.SearchResult, err error) {
	s.monitor.Start(projectID, sourceID, query)
	defer func() { s.monitor.Finish(result, err) }()
	return s.search(ctx, projectID, sourceID, query)
}

func (s *Searcher) search(ctx context.Context, projectID, sourceID, query string) (*core.SearchResult, error) {
	source, err := s.readySource(ctx, projectID, sourceID)
	if err != nil {
		return nil, err
	}
	s.monitor.SourceResolved(source)

	result := &core.SearchResult{
		SourceID:   source.ID,
		SourceName: source.Name,
		Query:      query,
	}

	if !source.IsEmbedded() {
		content, err := s.layout.ReadProcessed(projectID, sourceID)
		if err != nil {
			s.logger.Error("error reading processed text", "project", projectID, "source", sourceID, "err", err)
			return nil, fmt.Errorf("reading processed text: %w", err)
		}
		result.SearchType = core.SearchTypeFullContent
		result.Content = content
		return result, nil
	}

	query = normalizeQuery(query)
	if query == "" {
		return nil, ErrQueryRequired
	}

	start := time.Now()
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.vectors.Search(ctx, projectID, vector, s.topK, storage.Filter{SourceID: sourceID})
	if err != nil {
		s.logger.Error("error querying for similar chunks", "project", projectID, "source", sourceID, "err", err)
		return nil, err
	}
	s.monitor.AfterVectorSearch(matches)

	result.SearchType = core.SearchTypeSemantic
	result.Matches = make([]core.SearchMatch, 0, len(matches))
	for _, m := range matches {
		// The filter already guarantees this; a mismatch would mean a
		// vector store ignoring it.
		if m.Metadata.SourceID != sourceID {
			continue
		}
		result.Matches = append(result.Matches, core.SearchMatch{
			ChunkID:    m.ID,
			PageNumber: m.Metadata.PageNumber,
			Score:      m.Score,
			Text:       m.Metadata.Text,
			Verbatim:   containsAllQueryWords(m.Metadata.Text, query),
		})
	}

	s.logger.Debug("semantic search", "project", projectID, "source", sourceID,
		"matches", len(result.Matches), "elapsed", time.Since(start))
	return result, nil
}

// readySource loads a source and checks it can be searched.
func (s *Searcher) readySource(ctx context.Context, projectID, sourceID string) (*core.Source, error) {
	if projectID == "" || sourceID == "" {
		return nil, ErrSourceNotFound
	}
	source, err := s.sources.Get(ctx, projectID, sourceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}
	if err != nil {
		return nil, err
	}
	if source.Status != core.StatusReady {
		return nil, fmt.Errorf("%w: %s is %s", ErrSourceNotReady, sourceID, source.Status)
	}
	if !source.Active {
		return nil, fmt.Errorf("%w: %s", ErrSourceInactive, sourceID)
	}
	return source, nil
}

// embedQuery returns the normalized query embedding, from the cache if enabled.
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var key string
	if s.cache != nil {
		key = core.ContentHash(s.embedder.Model() + "\x00" + query)
		if vector, ok := s.cache.Get(key); ok {
			s.monitor.QueryEmbedded(true)
			return vector, nil
		}
	}

	raw, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	vector := embedding.NormalizeVector(raw)
	if s.cache != nil {
		s.cache.Add(key, vector)
	}
	s.monitor.QueryEmbedded(false)
	return vector, nil
}
