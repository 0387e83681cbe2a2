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

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

const (
	// DefaultBatchSize is the default number of sources handed to fn at once
	DefaultBatchSize = 10
)

// SourceIterator walks the ready sources of a project in batches.
type SourceIterator struct {
	repo      storage.SourceRepository
	batchSize int
}

// NewSourceIterator creates a new source iterator.
// batchSize: number of sources per batch; non-positive means DefaultBatchSize
func NewSourceIterator(repo storage.SourceRepository, batchSize int) *SourceIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SourceIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Ready returns the project's ready sources in creation order.
func (it *SourceIterator) Ready(ctx context.Context, projectID string) ([]*core.Source, error) {
	sources, err := it.repo.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ready := sources[:0]
	for _, src := range sources {
		if src.Status == core.StatusReady {
			ready = append(ready, src)
		}
	}
	return ready, nil
}

// ForEach calls fn with successive batches of the project's ready sources.
// Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *SourceIterator) ForEach(ctx context.Context, projectID string, fn func([]*core.Source) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sources, err := it.Ready(ctx, projectID)
	if err != nil {
		return err
	}

	for i := 0; i < len(sources); i += it.batchSize {
		end := min(i+it.batchSize, len(sources))
		if err := fn(sources[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
