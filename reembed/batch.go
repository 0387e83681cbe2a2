package reembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/files"
)

// Result counts what happened to the sources of a run.
type Result struct {
	Embedded   int // chunked and embedded
	Unembedded int // left unembedded by the policy or an embedding failure
	Skipped    int // already embedded with the current model, or no longer ready
	Failed     int // processed text unreadable or the update could not be stored
}

// Total is the number of sources accounted for.
func (r Result) Total() int {
	return r.Embedded + r.Unembedded + r.Skipped + r.Failed
}

func (r *Result) add(o Result) {
	r.Embedded += o.Embedded
	r.Unembedded += o.Unembedded
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

// BatchProcessor re-embeds batches of ready sources.
type BatchProcessor struct {
	repo        storage.SourceRepository
	layout      *files.Layout
	pipeline    *embedding.Pipeline
	concurrency int
	force       bool
	logger      *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// concurrency: sources re-embedded at once within a batch
// force: re-embed sources already embedded with the pipeline's model
func NewBatchProcessor(repo storage.SourceRepository, layout *files.Layout, pipeline *embedding.Pipeline, concurrency int, force bool, logger *slog.Logger) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:        repo,
		layout:      layout,
		pipeline:    pipeline,
		concurrency: concurrency,
		force:       force,
		logger:      logger,
	}
}

// Process re-embeds every source of the batch. A failing source is
// counted and logged; only context cancellation stops the batch.
func (bp *BatchProcessor) Process(ctx context.Context, sources []*core.Source) (Result, error) {
	var (
		mu     sync.Mutex
		result Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)
	for _, src := range sources {
		g.Go(func() error {
			outcome := bp.processOne(gctx, src)
			mu.Lock()
			result.add(outcome)
			mu.Unlock()
			return gctx.Err()
		})
	}
	err := g.Wait()
	return result, err
}

func (bp *BatchProcessor) processOne(ctx context.Context, src *core.Source) Result {
	logger := bp.logger.With("project", src.ProjectID, "source", src.ID)

	if !bp.force && src.IsEmbedded() && src.EmbeddingInfo.Model == bp.pipeline.Model() {
		logger.Debug("source already embedded with current model")
		return Result{Skipped: 1}
	}

	processed, err := bp.layout.ReadProcessed(src.ProjectID, src.ID)
	if err != nil {
		logger.Error("failed to read processed text", "err", err)
		return Result{Failed: 1}
	}

	info := bp.pipeline.ProcessEmbeddings(ctx, embedding.Request{
		ProjectID:     src.ProjectID,
		SourceID:      src.ID,
		SourceName:    src.Name,
		ProcessedText: processed,
	})
	if ctx.Err() != nil {
		return Result{}
	}

	_, err = bp.repo.Update(ctx, src.ProjectID, src.ID, func(s *core.Source) error {
		if s.Status != core.StatusReady {
			return fmt.Errorf("%w: %s", errNoLongerReady, s.Status)
		}
		s.EmbeddingInfo = &info
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		// Deleted while we embedded; drop what we just wrote.
		_ = bp.pipeline.DeleteEmbeddings(ctx, src.ProjectID, src.ID)
		logger.Info("source deleted during re-embedding")
		return Result{Skipped: 1}
	case errors.Is(err, errNoLongerReady):
		logger.Info("source left ready during re-embedding", "err", err)
		return Result{Skipped: 1}
	default:
		logger.Error("failed to store embedding info", "err", err)
		return Result{Failed: 1}
	}

	if info.IsEmbedded {
		return Result{Embedded: 1}
	}
	return Result{Unembedded: 1}
}
