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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/files"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of sources handed to the processor at once
	BatchSize int

	// Concurrency is how many sources of a batch are re-embedded in parallel
	Concurrency int

	// ReportInterval is how often to report progress (number of sources)
	ReportInterval int

	// Force re-embeds sources already embedded with the current model
	Force bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Concurrency:    2,
		ReportInterval: 1,
	}
}

// Reembedder orchestrates the re-embedding of a project's ready sources.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *SourceIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewReembedder(repo storage.SourceRepository, layout *files.Layout, pipeline *embedding.Pipeline, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if layout == nil {
		return nil, ErrLayoutRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	if config.ReportInterval < 1 {
		config.ReportInterval = 1
	}

	logger := slog.Default().With("component", "reembed")
	return &Reembedder{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, layout, pipeline, config.Concurrency, config.Force, logger),
		iterator:  NewSourceIterator(repo, config.BatchSize),
		logger:    logger,
	}, nil
}

// Run re-embeds every ready source of the project.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context, projectID string) (Result, error) {
	var result Result
	if projectID == "" {
		return result, core.ErrEmptyProjectID
	}

	ready, err := r.iterator.Ready(ctx, projectID)
	if err != nil {
		return result, fmt.Errorf("failed to list sources: %w", err)
	}
	if len(ready) == 0 {
		fmt.Fprintf(r.progress, "No ready sources in project %s\n", projectID)
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting re-embedding of %d sources (batch size: %d)\n",
		len(ready), r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, len(ready), r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, projectID, func(batch []*core.Source) error {
		outcome, err := r.processor.Process(ctx, batch)
		result.add(outcome)
		tracker.Increment(len(batch))
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Re-embedding complete. %d embedded, %d unembedded, %d skipped, %d failed in %v\n",
		result.Embedded, result.Unembedded, result.Skipped, result.Failed, elapsed.Round(time.Millisecond))
	r.logger.Info("re-embedding complete",
		"project", projectID,
		"embedded", result.Embedded,
		"unembedded", result.Unembedded,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}
