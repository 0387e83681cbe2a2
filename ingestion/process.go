package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/pagetext"
	"github.com/poiesic/lectern/storage"
)

// ProcessSource runs one processing attempt for a source: extraction,
// then embedding, ending in ready or error.
//
// A cancelled ctx stops the attempt without any further transition; the
// canceller owns the source from then on. An attempt that finds itself
// superseded returns storage.ErrStaleAttempt.
func (d *Dispatcher) ProcessSource(ctx context.Context, projectID, sourceID string) error {
	logger := d.logger.With("project", projectID, "source", sourceID)

	src, attempt, err := d.start(ctx, projectID, sourceID)
	if err != nil {
		return err
	}
	logger = logger.With("attempt", attempt)
	logger.Info("processing source", "name", src.Name, "ext", src.FileExtension)

	proc, doc, err := d.extract(ctx, src)
	if ctx.Err() != nil {
		logger.Info("processing cancelled")
		return ctx.Err()
	}
	if err != nil {
		return d.fail(ctx, src, attempt, err, logger)
	}

	err = d.finish(ctx, src, attempt, proc, doc, logger)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		logger.Info("processing cancelled")
		return ctx.Err()
	case errors.Is(err, storage.ErrStaleAttempt):
		logger.Info("processing attempt superseded")
		return err
	default:
		return d.fail(ctx, src, attempt, err, logger)
	}

	if d.summarizer != nil {
		d.scheduler.Submit(TaskSummarizeSource, summaryTarget(projectID, sourceID), d.summaryTask, projectID, sourceID)
	}
	return nil
}

// start moves the source into processing and returns the attempt number.
// The move happens under the source lock so it cannot interleave with a
// Cancel that has already signalled this task.
func (d *Dispatcher) start(ctx context.Context, projectID, sourceID string) (*core.Source, int, error) {
	unlock := d.lock(projectID, sourceID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	src, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		return nil, 0, err
	}
	processor := ""
	if proc, err := d.registry.Lookup(src.FileExtension); err == nil {
		processor = proc.Name()
	}

	src, err = d.sources.Transition(ctx, projectID, sourceID, storage.AnyAttempt, core.StatusProcessing, func(s *core.Source) error {
		s.ProcessingInfo = core.ProcessingInfo{
			Attempt:   s.ProcessingInfo.Attempt,
			Processor: processor,
			StartedAt: time.Now().UTC(),
		}
		s.EmbeddingInfo = nil
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("starting processing: %w", err)
	}
	return src, src.ProcessingInfo.Attempt, nil
}

func (d *Dispatcher) extract(ctx context.Context, src *core.Source) (proc extract.Processor, doc *pagetext.Document, err error) {
	defer recoverPanic(&err)

	proc, err = d.registry.Lookup(src.FileExtension)
	if err != nil {
		return nil, nil, err
	}
	content, err := d.layout.ReadRaw(src.ProjectID, src.ID, src.FileExtension)
	if err != nil {
		return nil, nil, fmt.Errorf("reading upload: %w", err)
	}
	doc, err = proc.Extract(ctx, extract.Input{
		SourceID:   src.ID,
		SourceName: src.Name,
		Extension:  src.FileExtension,
		Path:       d.layout.RawPath(src.ProjectID, src.ID, src.FileExtension),
		Content:    content,
	})
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoDocument, proc.Name())
	}
	return proc, doc, nil
}

// finish publishes the processed text and embeds it. The whole stage runs
// under the source lock; Cancel waits for it and then cleans up.
func (d *Dispatcher) finish(ctx context.Context, src *core.Source, attempt int, proc extract.Processor, doc *pagetext.Document, logger *slog.Logger) (err error) {
	projectID, sourceID := src.ProjectID, src.ID
	unlock := d.lock(projectID, sourceID)
	defer unlock()
	defer recoverPanic(&err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.checkAttempt(ctx, projectID, sourceID, attempt, core.StatusProcessing); err != nil {
		return err
	}

	processed := pagetext.Format(doc)
	if err := d.layout.WriteProcessed(projectID, sourceID, processed); err != nil {
		return fmt.Errorf("writing processed text: %w", err)
	}
	text := doc.Text()

	_, err = d.sources.Transition(ctx, projectID, sourceID, attempt, core.StatusEmbedding, func(s *core.Source) error {
		s.ProcessingInfo.Processor = proc.Name()
		s.ProcessingInfo.ContentHash = core.ContentHash(processed)
		s.ProcessingInfo.PageCount = len(doc.Pages)
		s.ProcessingInfo.CharCount = utf8.RuneCountInString(text)
		s.ProcessingInfo.CompletedAt = time.Now().UTC()
		s.ProcessingInfo.Error = ""
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("source extracted", "processor", proc.Name(), "pages", len(doc.Pages))

	info := d.pipeline.ProcessEmbeddings(ctx, embedding.Request{
		ProjectID:     projectID,
		SourceID:      sourceID,
		SourceName:    src.Name,
		ProcessedText: processed,
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = d.sources.Transition(ctx, projectID, sourceID, attempt, core.StatusReady, func(s *core.Source) error {
		s.EmbeddingInfo = &info
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("source ready", "embedded", info.IsEmbedded, "chunks", info.ChunkCount)
	return nil
}

// fail records cause on the source and moves it to error, unless the
// attempt has been superseded in the meantime.
func (d *Dispatcher) fail(ctx context.Context, src *core.Source, attempt int, cause error, logger *slog.Logger) error {
	projectID, sourceID := src.ProjectID, src.ID
	unlock := d.lock(projectID, sourceID)
	defer unlock()

	logger.Error("processing failed", "err", cause)

	current, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		logger.Warn("failed source is gone", "err", err)
		return cause
	}
	if current.ProcessingInfo.Attempt != attempt || !core.CanTransition(current.Status, core.StatusError) {
		logger.Info("processing attempt superseded", "status", current.Status)
		return cause
	}

	if err := d.layout.DeleteProcessed(projectID, sourceID); err != nil {
		logger.Warn("failed to delete partial processed text", "err", err)
	}
	_, err = d.sources.Transition(ctx, projectID, sourceID, attempt, core.StatusError, func(s *core.Source) error {
		s.ProcessingInfo.Error = cause.Error()
		s.ProcessingInfo.CompletedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		logger.Error("failed to record processing error", "err", err)
	}
	return cause
}

// checkAttempt verifies the source is still in status for this attempt.
func (d *Dispatcher) checkAttempt(ctx context.Context, projectID, sourceID string, attempt int, status core.SourceStatus) error {
	src, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		return err
	}
	if src.ProcessingInfo.Attempt != attempt || src.Status != status {
		return fmt.Errorf("%w: attempt %d is now %d in %s", storage.ErrStaleAttempt, attempt, src.ProcessingInfo.Attempt, src.Status)
	}
	return nil
}

// recoverPanic turns a panic in a processing stage into an error, so the
// attempt still ends in a status transition.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrProcessingPanicked, r)
	}
}
