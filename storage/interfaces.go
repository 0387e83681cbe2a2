package storage

import (
	"context"

	"github.com/poiesic/lectern/core"
)

// AnyAttempt disables the attempt check in SourceRepository.Transition.
const AnyAttempt = -1

// SourceRepository is the registry of sources, one document per project.
// Implementations must be thread-safe and serialise mutations per project.
// Returned sources are copies; mutating them has no effect on storage.
type SourceRepository interface {
	// List returns every source in a project ordered by creation time.
	// An unknown project has no sources.
	List(ctx context.Context, projectID string) ([]*core.Source, error)

	// Get returns a single source.
	// Returns ErrNotFound if the source doesn't exist.
	Get(ctx context.Context, projectID, sourceID string) (*core.Source, error)

	// Add registers a new source.
	// Sets CreatedAt and UpdatedAt. Returns ErrDuplicateKey if the id is taken.
	Add(ctx context.Context, source *core.Source) (*core.Source, error)

	// Update applies fn to the stored source and persists the result.
	// fn must not change the status; use Transition for that.
	// If fn returns an error nothing is persisted.
	Update(ctx context.Context, projectID, sourceID string, fn func(*core.Source) error) (*core.Source, error)

	// Transition moves a source to a new status and applies fn in the same
	// write. The move must be legal under core.CanTransition.
	//
	// If attempt is not AnyAttempt, the transition only happens while the
	// source's ProcessingInfo.Attempt still equals it; otherwise
	// ErrStaleAttempt is returned. A transition into processing increments
	// the attempt counter before fn runs.
	Transition(ctx context.Context, projectID, sourceID string, attempt int, to core.SourceStatus, fn func(*core.Source) error) (*core.Source, error)

	// Remove deletes a source from the registry.
	// Returns ErrNotFound if the source doesn't exist.
	Remove(ctx context.Context, projectID, sourceID string) error

	// Close releases resources held by the repository.
	Close() error
}

// Filter restricts vector operations by metadata.
type Filter struct {
	SourceID string
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return f.SourceID == ""
}

// Matches reports whether metadata passes the filter.
func (f Filter) Matches(md core.VectorMetadata) bool {
	return f.SourceID == "" || md.SourceID == f.SourceID
}

// DeleteRequest selects vectors to delete. Exactly one selector is used:
// All, then IDs, then Filter.
type DeleteRequest struct {
	IDs    []string
	Filter Filter
	All    bool
}

// VectorStore holds chunk embeddings in namespaces. The ingestion pipeline
// always uses the project id as the namespace.
type VectorStore interface {
	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, namespace string, records []core.VectorRecord) error

	// Search returns up to topK records most similar to vector that pass
	// the filter, highest score first.
	Search(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]core.VectorMatch, error)

	// Delete removes the records selected by req.
	// Deleting nothing is not an error.
	Delete(ctx context.Context, namespace string, req DeleteRequest) error
}
