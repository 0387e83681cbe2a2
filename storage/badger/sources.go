package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
//
// Each project's registry is one document, cached in memory after first
// load. Mutations hold the project's lock for the whole read-modify-write
// and persist the new document in a single transaction before the cache is
// updated, so readers never see an unpersisted state.
type SourceRepository struct {
	backend *Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]*storage.ProjectIndex
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(backend *Backend) (*SourceRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &SourceRepository{
		backend: backend,
		logger:  backend.logger.With("repository", "sources"),
		locks:   make(map[string]*sync.Mutex),
		cache:   make(map[string]*storage.ProjectIndex),
	}, nil
}

// Close drops the in-memory cache. The backend is closed by its owner.
func (r *SourceRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*storage.ProjectIndex)
	return nil
}

// List returns every source in a project ordered by creation time.
func (r *SourceRepository) List(ctx context.Context, projectID string) ([]*core.Source, error) {
	var out []*core.Source
	err := r.withProject(projectID, func(index *storage.ProjectIndex) (*storage.ProjectIndex, error) {
		out = make([]*core.Source, len(index.Sources))
		for i, s := range index.Sources {
			out[i] = s.Clone()
		}
		return nil, nil
	})
	return out, err
}

// Get returns a single source.
func (r *SourceRepository) Get(ctx context.Context, projectID, sourceID string) (*core.Source, error) {
	var out *core.Source
	err := r.withProject(projectID, func(index *storage.ProjectIndex) (*storage.ProjectIndex, error) {
		i := findSource(index, sourceID)
		if i < 0 {
			return nil, storage.ErrNotFound
		}
		out = index.Sources[i].Clone()
		return nil, nil
	})
	return out, err
}

// Add registers a new source.
func (r *SourceRepository) Add(ctx context.Context, source *core.Source) (*core.Source, error) {
	if source == nil {
		return nil, core.ErrInvalidSource
	}
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}

	added := source.Clone()
	now := time.Now().UTC()
	if added.CreatedAt.IsZero() {
		added.CreatedAt = now
	}
	added.UpdatedAt = now

	err := r.withProject(added.ProjectID, func(index *storage.ProjectIndex) (*storage.ProjectIndex, error) {
		if findSource(index, added.ID) >= 0 {
			return nil, fmt.Errorf("%w: source %s", storage.ErrDuplicateKey, added.ID)
		}
		next := cloneIndex(index)
		next.Sources = append(next.Sources, added)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return added.Clone(), nil
}

// Update applies fn to the stored source and persists the result.
func (r *SourceRepository) Update(ctx context.Context, projectID, sourceID string, fn func(*core.Source) error) (*core.Source, error) {
	return r.modify(projectID, sourceID, func(s *core.Source) error {
		status := s.Status
		if err := fn(s); err != nil {
			return err
		}
		if s.Status != status {
			return fmt.Errorf("%w: status changes go through Transition", core.ErrInvalidTransition)
		}
		return nil
	})
}

// Transition moves a source to a new status, conditioned on the attempt.
func (r *SourceRepository) Transition(ctx context.Context, projectID, sourceID string, attempt int, to core.SourceStatus, fn func(*core.Source) error) (*core.Source, error) {
	return r.modify(projectID, sourceID, func(s *core.Source) error {
		if attempt != storage.AnyAttempt && s.ProcessingInfo.Attempt != attempt {
			return fmt.Errorf("%w: source %s is on attempt %d, not %d",
				storage.ErrStaleAttempt, sourceID, s.ProcessingInfo.Attempt, attempt)
		}
		if err := core.ValidateTransition(s.Status, to); err != nil {
			return err
		}
		if to == core.StatusProcessing {
			s.ProcessingInfo.Attempt++
		}
		s.Status = to
		if fn != nil {
			if err := fn(s); err != nil {
				return err
			}
		}
		s.Status = to
		return nil
	})
}

// Remove deletes a source from the registry.
func (r *SourceRepository) Remove(ctx context.Context, projectID, sourceID string) error {
	return r.withProject(projectID, func(index *storage.ProjectIndex) (*storage.ProjectIndex, error) {
		i := findSource(index, sourceID)
		if i < 0 {
			return nil, storage.ErrNotFound
		}
		next := cloneIndex(index)
		next.Sources = slices.Delete(next.Sources, i, i+1)
		return next, nil
	})
}

// modify applies fn to a copy of one source and persists it on success.
func (r *SourceRepository) modify(projectID, sourceID string, fn func(*core.Source) error) (*core.Source, error) {
	var out *core.Source
	err := r.withProject(projectID, func(index *storage.ProjectIndex) (*storage.ProjectIndex, error) {
		i := findSource(index, sourceID)
		if i < 0 {
			return nil, storage.ErrNotFound
		}
		updated := index.Sources[i].Clone()
		if err := fn(updated); err != nil {
			return nil, err
		}
		updated.ID = sourceID
		updated.ProjectID = projectID
		updated.UpdatedAt = time.Now().UTC()

		next := cloneIndex(index)
		next.Sources[i] = updated
		out = updated.Clone()
		return next, nil
	})
	return out, err
}

// withProject runs fn with the project's registry under its lock.
// If fn returns a non-nil index, that index is persisted and cached.
func (r *SourceRepository) withProject(projectID string, fn func(*storage.ProjectIndex) (*storage.ProjectIndex, error)) error {
	if err := core.ValidateProjectID(projectID); err != nil {
		return err
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	lock := r.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	index, err := r.load(projectID)
	if err != nil {
		return err
	}

	next, err := fn(index)
	if err != nil || next == nil {
		return err
	}

	next.UpdatedAt = time.Now().UTC()
	if err := r.persist(next); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[projectID] = next
	r.mu.Unlock()
	return nil
}

func (r *SourceRepository) lockFor(projectID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[projectID] = lock
	}
	return lock
}

// load returns the cached index or reads it from BadgerDB.
// Callers hold the project lock.
func (r *SourceRepository) load(projectID string) (*storage.ProjectIndex, error) {
	r.mu.Lock()
	index, ok := r.cache[projectID]
	r.mu.Unlock()
	if ok {
		return index, nil
	}

	index = &storage.ProjectIndex{ProjectID: projectID}
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeProjectIndexKey(projectID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := storage.UnmarshalProjectIndex(val)
			if err != nil {
				return err
			}
			index = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[projectID] = index
	r.mu.Unlock()
	r.logger.Debug("loaded project registry", "project", projectID, "sources", len(index.Sources))
	return index, nil
}

func (r *SourceRepository) persist(index *storage.ProjectIndex) error {
	data, err := storage.MarshalProjectIndex(index)
	if err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeProjectIndexKey(index.ProjectID), data)
	})
}

func findSource(index *storage.ProjectIndex, sourceID string) int {
	return slices.IndexFunc(index.Sources, func(s *core.Source) bool {
		return s.ID == sourceID
	})
}

// cloneIndex copies the index shallowly; sources are replaced, never mutated.
func cloneIndex(index *storage.ProjectIndex) *storage.ProjectIndex {
	return &storage.ProjectIndex{
		ProjectID: index.ProjectID,
		Sources:   slices.Clone(index.Sources),
	}
}
