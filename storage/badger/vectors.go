package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB with a brute-force
// cosine scan over the namespace.
type VectorStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) (*VectorStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &VectorStore{
		backend: backend,
		logger:  backend.logger.With("repository", "vectors"),
	}, nil
}

// Upsert inserts or replaces records by id.
func (s *VectorStore) Upsert(ctx context.Context, namespace string, records []core.VectorRecord) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Values)
	for i := range records {
		if records[i].ID == "" {
			return fmt.Errorf("%w: empty vector id", storage.ErrInvalidQuery)
		}
		if len(records[i].Values) != dim {
			return fmt.Errorf("%w: %s has %d components, want %d",
				storage.ErrDimensionMismatch, records[i].ID, len(records[i].Values), dim)
		}
	}

	return s.backend.Update(func(tx *badger.Txn) error {
		for i := range records {
			value := storage.MarshalVector(&records[i])
			if err := tx.Set(makeVectorKey(namespace, records[i].ID), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search finds the topK vectors most similar to the query that pass the filter.
func (s *VectorStore) Search(ctx context.Context, namespace string, vector []float32, topK int, filter storage.Filter) ([]core.VectorMatch, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	if topK < 1 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []core.VectorMatch
	err := s.scan(namespace, func(key []byte, record *core.VectorRecord) error {
		if !filter.Matches(record.Metadata) {
			return nil
		}
		if len(record.Values) != len(vector) {
			return fmt.Errorf("%w: stored %d, query %d", storage.ErrDimensionMismatch, len(record.Values), len(vector))
		}
		results = append(results, core.VectorMatch{
			ID:       record.ID,
			Score:    cosine(vector, record.Values),
			Metadata: record.Metadata,
		})
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b core.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes the records selected by req.
func (s *VectorStore) Delete(ctx context.Context, namespace string, req storage.DeleteRequest) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	var keys [][]byte
	switch {
	case req.All:
		if err := s.scanKeys(namespace, func(key []byte) { keys = append(keys, key) }); err != nil {
			return err
		}
	case len(req.IDs) > 0:
		for _, id := range req.IDs {
			keys = append(keys, makeVectorKey(namespace, id))
		}
	case !req.Filter.IsEmpty():
		err := s.scan(namespace, func(key []byte, record *core.VectorRecord) error {
			if req.Filter.Matches(record.Metadata) {
				keys = append(keys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: empty delete request", storage.ErrInvalidQuery)
	}

	if len(keys) == 0 {
		return nil
	}

	// WriteBatch splits large deletes across transactions.
	wb := s.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	s.logger.Debug("deleted vectors", "namespace", namespace, "count", len(keys))
	return nil
}

// Count returns the number of vectors in a namespace that pass the filter.
func (s *VectorStore) Count(ctx context.Context, namespace string, filter storage.Filter) (int, error) {
	if err := validateNamespace(namespace); err != nil {
		return 0, err
	}
	count := 0
	err := s.scan(namespace, func(key []byte, record *core.VectorRecord) error {
		if filter.Matches(record.Metadata) {
			count++
		}
		return nil
	})
	return count, err
}

func (s *VectorStore) scan(namespace string, fn func(key []byte, record *core.VectorRecord) error) error {
	prefix := makeVectorNamespacePrefix(namespace)
	return s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)
			id := string(key[len(prefix):])

			var record *core.VectorRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVector(id, val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(key, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *VectorStore) scanKeys(namespace string, fn func(key []byte)) error {
	return s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorNamespacePrefix(namespace)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			fn(iter.Item().KeyCopy(nil))
		}
		return nil
	})
}

// Namespaces are project ids; the colon they may not contain separates
// key segments.
func validateNamespace(namespace string) error {
	if err := core.ValidateProjectID(namespace); err != nil {
		return fmt.Errorf("%w: namespace: %w", storage.ErrInvalidQuery, err)
	}
	return nil
}
