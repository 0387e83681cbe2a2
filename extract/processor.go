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

package extract

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/pagetext"
)

// Input is the raw content of one source.
type Input struct {
	SourceID   string
	SourceName string
	Extension  string
	Path       string // Location of the raw upload on disk
	Content    []byte // Raw upload bytes
}

// Processor extracts processed text from one kind of source.
type Processor interface {
	// Name identifies the processor in ProcessingInfo.
	Name() string

	// Type is the document type written into page markers.
	Type() string

	// Extract reads the input and returns its pages. Implementations must
	// return either a complete document or an error, never a partial one.
	Extract(ctx context.Context, in Input) (*pagetext.Document, error)
}

// Registry maps file extensions to processors.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Processor)}
}

// Register maps ext to p, replacing any earlier mapping.
func (r *Registry) Register(ext string, p Processor) error {
	ext = core.NormalizeExtension(ext)
	if ext == "" {
		return errors.New("extension required")
	}
	if p == nil {
		return errors.New("processor required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[ext] = p
	return nil
}

// Lookup returns the processor for ext.
// Returns ErrUnsupportedType if none is registered.
func (r *Registry) Lookup(ext string) (Processor, error) {
	ext = core.NormalizeExtension(ext)
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return p, nil
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.processors))
	for ext := range r.processors {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// newDocument starts a document carrying the common header values.
func newDocument(docType string, in Input) *pagetext.Document {
	return pagetext.New(docType).
		Set(pagetext.KeySource, in.SourceName).
		Set(pagetext.KeySourceID, in.SourceID).
		Set(pagetext.KeyProcessedAt, time.Now().UTC().Format(time.RFC3339))
}
