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

// Package lectern is a per-project knowledge base: uploaded documents,
// media, links and research text are turned into page-marked processed
// text, chunked, embedded and made searchable with chunk-level citations.
//
// KnowledgeBase wires the storage, extraction, embedding, scheduling and
// retrieval packages together from a single data directory.
package lectern

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/ai/openai"
	"github.com/poiesic/lectern/chunker"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/reembed"
	"github.com/poiesic/lectern/scheduler"
	"github.com/poiesic/lectern/search"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/badger"
	"github.com/poiesic/lectern/storage/files"
	"github.com/poiesic/lectern/storage/pgvector"
)

const (
	// indexDir is the badger directory inside the data directory.
	indexDir = "index"

	closeTimeout = 10 * time.Second
)

// KnowledgeBase is an open knowledge base rooted at one data directory.
type KnowledgeBase struct {
	backend    *badger.Backend
	sources    *badger.SourceRepository
	vectors    storage.VectorStore
	closers    []io.Closer
	layout     *files.Layout
	provider   ai.AIProvider
	scheduler  *scheduler.Scheduler
	registry   *extract.Registry
	pipeline   *embedding.Pipeline
	dispatcher *ingestion.Dispatcher
	searcher   *search.Searcher
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures Open.
type Option func(*options)

type options struct {
	config      *config.Config
	provider    ai.AIProvider
	vectors     storage.VectorStore
	pageReader  extract.PageReader
	transcripts extract.TranscriptFetcher
	inMemory    bool
	logger      *slog.Logger
}

// WithConfig sets the configuration. Default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithAIProvider replaces the OpenAI-compatible provider built from the
// configuration.
func WithAIProvider(p ai.AIProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithVectorStore replaces the configured vector store.
func WithVectorStore(vs storage.VectorStore) Option {
	return func(o *options) {
		o.vectors = vs
	}
}

// WithPageReader sets the PDF page reader. By default poppler's tools are
// used when they are installed and PDFs are rejected otherwise.
func WithPageReader(r extract.PageReader) Option {
	return func(o *options) {
		o.pageReader = r
	}
}

// WithTranscriptFetcher enables YouTube links.
func WithTranscriptFetcher(f extract.TranscriptFetcher) Option {
	return func(o *options) {
		o.transcripts = f
	}
}

// WithInMemoryIndex keeps the source index and badger vectors in memory.
// Files are still written under the data directory.
func WithInMemoryIndex() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens or creates the knowledge base in dataDir.
func Open(ctx context.Context, dataDir string, opts ...Option) (*KnowledgeBase, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		o.config = config.Default()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kb := &KnowledgeBase{logger: o.logger.With("component", "lectern")}
	opened := false
	defer func() {
		if !opened {
			kb.Close()
		}
	}()

	var err error
	if kb.layout, err = files.New(dataDir); err != nil {
		return nil, err
	}
	if kb.backend, err = badger.OpenBackend(filepath.Join(dataDir, indexDir), o.inMemory); err != nil {
		return nil, err
	}
	if kb.sources, err = badger.NewSourceRepository(kb.backend); err != nil {
		return nil, err
	}
	if kb.vectors, err = kb.openVectors(ctx, o); err != nil {
		return nil, err
	}

	kb.provider = o.provider
	if kb.provider == nil {
		if kb.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return nil, err
		}
	}

	ch, err := chunker.New(
		chunker.WithTokenizer(cfg.Tokenizer()),
		chunker.WithTarget(cfg.Chunking.TargetTokens, cfg.Chunking.Tolerance),
		chunker.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	retry := embedding.DefaultRetryPolicy
	if cfg.Embedding.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Embedding.MaxAttempts
	}
	pipelineOpts := []embedding.Option{
		embedding.WithChunker(ch),
		embedding.WithPolicy(cfg.Policy()),
		embedding.WithRetryPolicy(retry),
		embedding.WithLogger(o.logger),
	}
	if cfg.Embedding.BatchSize > 0 {
		pipelineOpts = append(pipelineOpts, embedding.WithEmbedBatchSize(cfg.Embedding.BatchSize))
	}
	if cfg.Embedding.UpsertBatchSize > 0 {
		pipelineOpts = append(pipelineOpts, embedding.WithUpsertBatchSize(cfg.Embedding.UpsertBatchSize))
	}
	if kb.pipeline, err = embedding.New(kb.provider.Embedder(), kb.vectors, kb.layout, pipelineOpts...); err != nil {
		return nil, err
	}

	if kb.registry, err = newRegistry(cfg, o, kb.provider); err != nil {
		return nil, err
	}

	if kb.scheduler, err = scheduler.New(
		scheduler.WithPoolSize(cfg.Scheduler.PoolSize),
		scheduler.WithRetention(cfg.Scheduler.Retention),
		scheduler.WithLogger(o.logger)); err != nil {
		return nil, err
	}

	dispatcherOpts := []ingestion.Option{ingestion.WithLogger(o.logger)}
	if s := kb.provider.Summarizer(); s != nil {
		dispatcherOpts = append(dispatcherOpts, ingestion.WithSummarizer(s))
	}
	if kb.dispatcher, err = ingestion.NewDispatcher(kb.sources, kb.layout, kb.registry, kb.pipeline, kb.scheduler, dispatcherOpts...); err != nil {
		return nil, err
	}

	searchOpts := []search.Option{search.WithLogger(o.logger)}
	if cfg.Search.TopK > 0 {
		searchOpts = append(searchOpts, search.WithTopK(cfg.Search.TopK))
	}
	if cfg.Search.QueryCacheSize > 0 {
		searchOpts = append(searchOpts, search.WithQueryCache(cfg.Search.QueryCacheSize))
	}
	if kb.searcher, err = search.NewSearcher(kb.sources, kb.vectors, kb.layout, kb.provider.Embedder(), searchOpts...); err != nil {
		return nil, err
	}

	kb.logger.Info("knowledge base open",
		"data_dir", dataDir,
		"vector_store", cfg.VectorStore.Backend,
		"extensions", kb.registry.Extensions())
	opened = true
	return kb, nil
}

func (kb *KnowledgeBase) openVectors(ctx context.Context, o *options) (storage.VectorStore, error) {
	if o.vectors != nil {
		return o.vectors, nil
	}
	if o.config.VectorStore.Backend == config.VectorStorePgvector {
		pgOpts := []pgvector.Option{pgvector.WithLogger(o.logger)}
		if o.config.VectorStore.Table != "" {
			pgOpts = append(pgOpts, pgvector.WithTable(o.config.VectorStore.Table))
		}
		store, err := pgvector.Open(ctx, o.config.VectorStore.DSN, pgOpts...)
		if err != nil {
			return nil, err
		}
		kb.closers = append(kb.closers, store)
		return store, nil
	}
	return badger.NewVectorStore(kb.backend)
}

func newRegistry(cfg *config.Config, o *options, provider ai.AIProvider) (*extract.Registry, error) {
	linkOpts := []extract.LinkOption{extract.WithLinkLogger(o.logger)}
	if cfg.Extract.LinkRateLimit > 0 {
		linkOpts = append(linkOpts, extract.WithRateLimit(cfg.Extract.LinkRateLimit, max(cfg.Extract.LinkBurst, 1)))
	}
	if cfg.Extract.UserAgent != "" {
		linkOpts = append(linkOpts, extract.WithUserAgent(cfg.Extract.UserAgent))
	}
	if o.transcripts != nil {
		linkOpts = append(linkOpts, extract.WithTranscriptFetcher(o.transcripts))
	}
	link, err := extract.NewLink(linkOpts...)
	if err != nil {
		return nil, err
	}

	reader := o.pageReader
	if reader == nil {
		if poppler := extract.NewPdfToText(nil); poppler.Available() {
			reader = poppler
		}
	}

	services := extract.Services{
		PageReader:     reader,
		Link:           link,
		Logger:         o.logger,
		PDFConcurrency: cfg.Extract.PDFConcurrency,
		CSVRowsPerPage: cfg.Extract.CSVRowsPerPage,
	}
	if extractor := provider.ImageExtractor(); extractor != nil {
		services.ImageExtractor = extractor
	}
	if transcriber := provider.Transcriber(); transcriber != nil {
		services.Transcriber = transcriber
	}
	return extract.NewDefaultRegistry(services)
}

// Close stops outstanding tasks and releases every resource.
// Calling Close more than once is safe.
func (kb *KnowledgeBase) Close() error {
	kb.closeOnce.Do(func() {
		kb.closeErr = kb.close()
	})
	return kb.closeErr
}

func (kb *KnowledgeBase) close() error {
	if kb.scheduler != nil {
		kb.scheduler.Release()
		// Cancelled tasks still hold the stores until they return.
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := kb.scheduler.Wait(ctx); err != nil {
			kb.logger.Warn("tasks still running at close", "err", err)
		}
		cancel()
	}
	var errs []error
	if kb.provider != nil {
		if err := kb.provider.Close(); err != nil {
			kb.logger.Error("error closing AI provider", "err", err)
		}
	}
	for _, c := range kb.closers {
		if err := c.Close(); err != nil {
			kb.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.sources != nil {
		if err := kb.sources.Close(); err != nil {
			kb.logger.Error("error closing source repository", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.backend != nil {
		if err := kb.backend.Close(); err != nil {
			kb.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddSource stores an uploaded file and schedules it for processing.
func (kb *KnowledgeBase) AddSource(ctx context.Context, projectID, name, ext string, content io.Reader, meta map[string]string) (*core.Source, error) {
	return kb.dispatcher.AddSource(ctx, projectID, name, ext, content, meta)
}

// AddText registers pasted text.
func (kb *KnowledgeBase) AddText(ctx context.Context, projectID, name, text string, meta map[string]string) (*core.Source, error) {
	return kb.dispatcher.AddText(ctx, projectID, name, text, meta)
}

// AddLink registers a web page or video link.
func (kb *KnowledgeBase) AddLink(ctx context.Context, projectID, rawURL string, meta map[string]string) (*core.Source, error) {
	return kb.dispatcher.AddLink(ctx, projectID, rawURL, meta)
}

// AddResearch registers text a research agent produced for query.
func (kb *KnowledgeBase) AddResearch(ctx context.Context, projectID, name, query, text string, meta map[string]string) (*core.Source, error) {
	return kb.dispatcher.AddResearch(ctx, projectID, name, query, text, meta)
}

// Source returns one source.
func (kb *KnowledgeBase) Source(ctx context.Context, projectID, sourceID string) (*core.Source, error) {
	return kb.sources.Get(ctx, projectID, sourceID)
}

// Sources lists a project's sources in creation order.
func (kb *KnowledgeBase) Sources(ctx context.Context, projectID string) ([]*core.Source, error) {
	return kb.sources.List(ctx, projectID)
}

// Retry reschedules a waiting or failed source.
func (kb *KnowledgeBase) Retry(ctx context.Context, projectID, sourceID string) (string, error) {
	return kb.dispatcher.Retry(ctx, projectID, sourceID)
}

// Cancel stops work on a source and returns it to uploaded.
func (kb *KnowledgeBase) Cancel(ctx context.Context, projectID, sourceID string) error {
	return kb.dispatcher.Cancel(ctx, projectID, sourceID)
}

// DeleteSource removes a source and everything derived from it.
func (kb *KnowledgeBase) DeleteSource(ctx context.Context, projectID, sourceID string) error {
	return kb.dispatcher.DeleteSource(ctx, projectID, sourceID)
}

// SetActive includes or excludes a source from retrieval.
func (kb *KnowledgeBase) SetActive(ctx context.Context, projectID, sourceID string, active bool) (*core.Source, error) {
	return kb.dispatcher.SetActive(ctx, projectID, sourceID, active)
}

// Resume reschedules the project's interrupted and waiting sources.
func (kb *KnowledgeBase) Resume(ctx context.Context, projectID string) (int, error) {
	return kb.dispatcher.Resume(ctx, projectID)
}

// Tasks returns the retained tasks of a source.
func (kb *KnowledgeBase) Tasks(projectID, sourceID string) []scheduler.Task {
	return kb.dispatcher.Tasks(projectID, sourceID)
}

// Wait blocks until no task is outstanding or ctx is done.
func (kb *KnowledgeBase) Wait(ctx context.Context) error {
	return kb.scheduler.Wait(ctx)
}

// Search retrieves content of one source for query.
func (kb *KnowledgeBase) Search(ctx context.Context, projectID, sourceID, query string) (*core.SearchResult, error) {
	return kb.searcher.Search(ctx, projectID, sourceID, query)
}

// ResolveCitation returns the persisted chunk a citation token names.
func (kb *KnowledgeBase) ResolveCitation(ctx context.Context, projectID, token string) (*core.Citation, error) {
	return kb.searcher.ResolveCitation(ctx, projectID, token)
}

// Reembed rebuilds the chunks and vectors of the project's ready sources.
func (kb *KnowledgeBase) Reembed(ctx context.Context, projectID string, cfg *reembed.Config, progress io.Writer) (reembed.Result, error) {
	r, err := reembed.NewReembedder(kb.sources, kb.layout, kb.pipeline, cfg, progress)
	if err != nil {
		return reembed.Result{}, err
	}
	return r.Run(ctx, projectID)
}

// Extensions lists the file extensions sources can be added with.
func (kb *KnowledgeBase) Extensions() []string {
	return kb.registry.Extensions()
}
