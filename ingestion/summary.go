package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/pagetext"
)

func (d *Dispatcher) summaryTask(ctx context.Context, args ...any) error {
	projectID, sourceID, err := taskArgs(args)
	if err != nil {
		return err
	}
	return d.SummarizeSource(ctx, projectID, sourceID)
}

// SummarizeSource generates a summary of a ready source's processed text
// and stores it in SummaryInfo. A summarizer failure is recorded in
// SummaryInfo.Error and does not change the source's status.
func (d *Dispatcher) SummarizeSource(ctx context.Context, projectID, sourceID string) error {
	if d.summarizer == nil {
		return nil
	}
	logger := d.logger.With("project", projectID, "source", sourceID)

	src, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		return err
	}
	if src.Status != core.StatusReady {
		return fmt.Errorf("%w: %s", ErrNotReady, src.Status)
	}

	processed, err := d.layout.ReadProcessed(projectID, sourceID)
	if err != nil {
		return fmt.Errorf("reading processed text: %w", err)
	}
	doc, err := pagetext.Parse(processed)
	if err != nil {
		return fmt.Errorf("reading processed text: %w", err)
	}

	info := &core.SummaryInfo{GeneratedAt: time.Now().UTC()}
	summary, sumErr := d.summarizer.Summarize(ctx, doc.Text())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if sumErr != nil {
		logger.Warn("summary failed", "err", sumErr)
		info.Error = sumErr.Error()
	} else {
		info.Summary = summary.Summary
		info.KeyTopics = summary.KeyTopics
		info.Model = summary.Model
	}

	_, err = d.sources.Update(ctx, projectID, sourceID, func(s *core.Source) error {
		s.SummaryInfo = info
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	if sumErr == nil {
		logger.Info("source summarized", "topics", len(info.KeyTopics))
	}
	return nil
}
