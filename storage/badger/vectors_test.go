package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectors(t *testing.T) *VectorStore {
	t.Helper()
	sources, vectors, backend, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		sources.Close()
		backend.Close()
	})
	return vectors
}

func vec(sourceID string, page, index int, values ...float32) core.VectorRecord {
	id := core.FormatChunkID(sourceID, page, index)
	return core.VectorRecord{
		ID:     id,
		Values: values,
		Metadata: core.VectorMetadata{
			SourceID:   sourceID,
			PageNumber: page,
			Text:       "text of " + id,
			SourceName: sourceID + ".pdf",
		},
	}
}

func TestVectorStore_SearchRanksByCosine(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "p1", []core.VectorRecord{
		vec("s1", 1, 1, 1, 0, 0),
		vec("s1", 1, 2, 0.9, 0.1, 0),
		vec("s1", 2, 3, 0, 0, 1),
	})
	require.NoError(t, err)

	matches, err := store.Search(ctx, "p1", []float32{1, 0, 0}, 2, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "s1_page_1_chunk_1", matches[0].ID)
	assert.Equal(t, "s1_page_1_chunk_2", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "text of s1_page_1_chunk_1", matches[0].Metadata.Text)
}

func TestVectorStore_SearchFiltersBySource(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "p1", []core.VectorRecord{
		vec("s1", 1, 1, 1, 0),
		vec("s2", 1, 1, 1, 0),
		vec("s2", 1, 2, 0, 1),
	}))

	matches, err := store.Search(ctx, "p1", []float32{1, 0}, 5, storage.Filter{SourceID: "s2"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "s2", m.Metadata.SourceID)
	}
}

func TestVectorStore_NamespacesAreIsolated(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "p1", []core.VectorRecord{vec("s1", 1, 1, 1, 0)}))
	require.NoError(t, store.Upsert(ctx, "p2", []core.VectorRecord{vec("s9", 1, 1, 1, 0)}))

	matches, err := store.Search(ctx, "p1", []float32{1, 0}, 5, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "s1", matches[0].Metadata.SourceID)
}

func TestVectorStore_UpsertReplaces(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "p1", []core.VectorRecord{vec("s1", 1, 1, 1, 0)}))
	require.NoError(t, store.Upsert(ctx, "p1", []core.VectorRecord{vec("s1", 1, 1, 0, 1)}))

	count, err := store.Count(ctx, "p1", storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := store.Search(ctx, "p1", []float32{0, 1}, 1, storage.Filter{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestVectorStore_UpsertValidation(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "p1", []core.VectorRecord{vec("s1", 1, 1, 1, 0), vec("s1", 1, 2, 1, 0, 0)})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	err = store.Upsert(ctx, "", []core.VectorRecord{vec("s1", 1, 1, 1, 0)})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	err = store.Upsert(ctx, "a:b", []core.VectorRecord{vec("s1", 1, 1, 1, 0)})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	assert.NoError(t, store.Upsert(ctx, "p1", nil))
}

func TestVectorStore_DeleteByFilter(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	var records []core.VectorRecord
	for i := 1; i <= 5; i++ {
		records = append(records, vec("s1", 1, i, float32(i), 1))
		records = append(records, vec("s2", 1, i, float32(i), 1))
	}
	require.NoError(t, store.Upsert(ctx, "p1", records))

	require.NoError(t, store.Delete(ctx, "p1", storage.DeleteRequest{Filter: storage.Filter{SourceID: "s1"}}))

	count, err := store.Count(ctx, "p1", storage.Filter{SourceID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	count, err = store.Count(ctx, "p1", storage.Filter{SourceID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestVectorStore_DeleteByIDsAndAll(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	var records []core.VectorRecord
	for i := 1; i <= 3; i++ {
		records = append(records, vec("s1", 1, i, 1, 0))
	}
	require.NoError(t, store.Upsert(ctx, "p1", records))
	require.NoError(t, store.Upsert(ctx, "p2", records))

	require.NoError(t, store.Delete(ctx, "p1", storage.DeleteRequest{IDs: []string{records[0].ID, "missing"}}))
	count, err := store.Count(ctx, "p1", storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.Delete(ctx, "p1", storage.DeleteRequest{All: true}))
	count, err = store.Count(ctx, "p1", storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = store.Count(ctx, "p2", storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count, "other namespaces are untouched")

	assert.ErrorIs(t, store.Delete(ctx, "p1", storage.DeleteRequest{}), storage.ErrInvalidQuery)
}

func TestVectorStore_SearchValidation(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	_, err := store.Search(ctx, "p1", []float32{1}, 0, storage.Filter{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	matches, err := store.Search(ctx, "empty", []float32{1}, 3, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestVectorStore_ManyRecords(t *testing.T) {
	store := newTestVectors(t)
	ctx := context.Background()

	records := make([]core.VectorRecord, 0, 250)
	for i := 1; i <= 250; i++ {
		records = append(records, vec("big", i, i, float32(i%7), float32(i%3), 1))
	}
	for start := 0; start < len(records); start += 100 {
		end := min(start+100, len(records))
		require.NoError(t, store.Upsert(ctx, "p1", records[start:end]), fmt.Sprintf("batch at %d", start))
	}

	count, err := store.Count(ctx, "p1", storage.Filter{SourceID: "big"})
	require.NoError(t, err)
	assert.Equal(t, 250, count)
}
