package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRowAndMatch(t *testing.T) {
	record := core.VectorRecord{
		ID:     "s1_page_2_chunk_3",
		Values: []float32{0.1, 0.2},
		Metadata: core.VectorMetadata{
			SourceID:   "s1",
			PageNumber: 2,
			Text:       "text",
			SourceName: "doc.pdf",
		},
	}

	row := toRow("p1", record)
	assert.Equal(t, "p1", row.Namespace)
	assert.Equal(t, record.ID, row.ID)
	assert.Equal(t, record.Values, row.Embedding.Slice())

	match := scoredRow{chunkVector: row, Score: 0.75}.match()
	assert.Equal(t, record.ID, match.ID)
	assert.Equal(t, float32(0.75), match.Score)
	assert.Equal(t, record.Metadata, match.Metadata)
}

func TestOptions(t *testing.T) {
	s := &Store{}
	assert.Error(t, WithTable("")(s))
	assert.Error(t, WithBatchSize(0)(s))
	require.NoError(t, WithTable("vectors")(s))
	require.NoError(t, WithBatchSize(10)(s))
	assert.Equal(t, "vectors", s.table)
	assert.Equal(t, 10, s.batchSize)
}

// Integration tests need a PostgreSQL server with the vector extension.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LECTERN_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LECTERN_TEST_PG_DSN not set")
	}
	s, err := Open(context.Background(), dsn, WithTable("test_vectors_"+uuid.NewString()[:8]))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Migrator().DropTable(s.table)
		s.Close()
	})
	return s
}

func TestStore_Integration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []core.VectorRecord{
		{ID: "a_page_1_chunk_1", Values: []float32{1, 0, 0}, Metadata: core.VectorMetadata{SourceID: "a", PageNumber: 1, Text: "one"}},
		{ID: "a_page_1_chunk_2", Values: []float32{0, 1, 0}, Metadata: core.VectorMetadata{SourceID: "a", PageNumber: 1, Text: "two"}},
		{ID: "b_page_1_chunk_1", Values: []float32{1, 0, 0}, Metadata: core.VectorMetadata{SourceID: "b", PageNumber: 1, Text: "three"}},
	}
	require.NoError(t, s.Upsert(ctx, "p1", records))
	require.NoError(t, s.Upsert(ctx, "p1", records), "upsert is idempotent")

	matches, err := s.Search(ctx, "p1", []float32{1, 0, 0}, 5, storage.Filter{SourceID: "a"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a_page_1_chunk_1", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)

	require.NoError(t, s.Delete(ctx, "p1", storage.DeleteRequest{Filter: storage.Filter{SourceID: "a"}}))
	matches, err = s.Search(ctx, "p1", []float32{1, 0, 0}, 5, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Metadata.SourceID)

	require.NoError(t, s.Delete(ctx, "p1", storage.DeleteRequest{All: true}))
	matches, err = s.Search(ctx, "p1", []float32{1, 0, 0}, 5, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}
