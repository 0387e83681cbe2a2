package reembed

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/chunker"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/pagetext"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/badger"
	"github.com/poiesic/lectern/storage/files"
)

const testProject = "project-1"

type fixture struct {
	sources  *badger.SourceRepository
	vectors  *badger.VectorStore
	layout   *files.Layout
	embedder *mock.MockEmbedder
	chunker  *chunker.Chunker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sources, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		sources.Close()
		backend.Close()
	})

	layout, err := files.New(t.TempDir())
	require.NoError(t, err)
	ch, err := chunker.New(chunker.WithTokenizer(chunker.Estimator{CharsPerToken: 4}))
	require.NoError(t, err)

	return &fixture{
		sources:  sources,
		vectors:  vectors,
		layout:   layout,
		embedder: mock.NewMockEmbedder(),
		chunker:  ch,
	}
}

func (f *fixture) pipeline(t *testing.T, policy embedding.Policy) *embedding.Pipeline {
	t.Helper()
	p, err := embedding.New(f.embedder, f.vectors, f.layout,
		embedding.WithChunker(f.chunker),
		embedding.WithPolicy(policy))
	require.NoError(t, err)
	return p
}

// addSource registers a source in status with processed text of one page.
func (f *fixture) addSource(t *testing.T, id string, status core.SourceStatus, info *core.EmbeddingInfo, page string) {
	t.Helper()
	doc := pagetext.New(pagetext.TypeText).
		Set(pagetext.KeySource, id).
		Set(pagetext.KeySourceID, id)
	doc.Pages = []string{page}
	require.NoError(t, f.layout.WriteProcessed(testProject, id, pagetext.Format(doc)))

	_, err := f.sources.Add(context.Background(), &core.Source{
		ID:            id,
		ProjectID:     testProject,
		Name:          id,
		Category:      core.CategoryText,
		FileExtension: "txt",
		Status:        status,
		Active:        true,
		EmbeddingInfo: info,
	})
	require.NoError(t, err)
}

func (f *fixture) reembedder(t *testing.T, p *embedding.Pipeline, config *Config, out io.Writer) *Reembedder {
	t.Helper()
	r, err := NewReembedder(f.sources, f.layout, p, config, out)
	require.NoError(t, err)
	return r
}

func TestNewReembedder_RequiresDependencies(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, embedding.AlwaysEmbed())

	_, err := NewReembedder(nil, f.layout, p, nil, nil)
	assert.ErrorIs(t, err, ErrSourceRepositoryRequired)
	_, err = NewReembedder(f.sources, nil, p, nil, nil)
	assert.ErrorIs(t, err, ErrLayoutRequired)
	_, err = NewReembedder(f.sources, f.layout, nil, nil, nil)
	assert.ErrorIs(t, err, ErrPipelineRequired)

	r, err := NewReembedder(f.sources, f.layout, p, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReembedder_EmbedsPreviouslyUnembeddedSources(t *testing.T) {
	f := newFixture(t)
	below := &core.EmbeddingInfo{Reason: "below threshold"}
	f.addSource(t, "alpha", core.StatusReady, below, "Tide tables predict the height of the water.")
	f.addSource(t, "beta", core.StatusReady, below, "Anchors hold a ship against wind and current.")
	f.addSource(t, "gamma", core.StatusUploaded, nil, "Not processed yet.")

	var out bytes.Buffer
	r := f.reembedder(t, f.pipeline(t, embedding.AlwaysEmbed()), &Config{BatchSize: 1, Concurrency: 2}, &out)
	result, err := r.Run(context.Background(), testProject)
	require.NoError(t, err)

	assert.Equal(t, Result{Embedded: 2}, result)
	assert.Equal(t, 2, result.Total())
	assert.Contains(t, out.String(), "Starting re-embedding of 2 sources")
	assert.Contains(t, out.String(), "2/2 sources")
	assert.Contains(t, out.String(), "2 embedded")

	for _, id := range []string{"alpha", "beta"} {
		src, err := f.sources.Get(context.Background(), testProject, id)
		require.NoError(t, err)
		require.NotNil(t, src.EmbeddingInfo)
		assert.True(t, src.EmbeddingInfo.IsEmbedded, id)
		assert.Equal(t, "mock-embedder", src.EmbeddingInfo.Model)
		n, err := f.layout.CountChunks(testProject, id)
		require.NoError(t, err)
		assert.Equal(t, src.EmbeddingInfo.ChunkCount, n)
	}

	gamma, err := f.sources.Get(context.Background(), testProject, "gamma")
	require.NoError(t, err)
	assert.Nil(t, gamma.EmbeddingInfo)
}

func TestReembedder_SkipsCurrentModelUnlessForced(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, embedding.AlwaysEmbed())
	current := &core.EmbeddingInfo{IsEmbedded: true, ChunkCount: 1, Model: "mock-embedder"}
	stale := &core.EmbeddingInfo{IsEmbedded: true, ChunkCount: 1, Model: "old-model"}
	f.addSource(t, "current", core.StatusReady, current, "Charts mark shoals and reefs.")
	f.addSource(t, "stale", core.StatusReady, stale, "Buoys mark the channel.")

	result, err := f.reembedder(t, p, nil, nil).Run(context.Background(), testProject)
	require.NoError(t, err)
	assert.Equal(t, Result{Embedded: 1, Skipped: 1}, result)

	result, err = f.reembedder(t, p, &Config{Force: true}, nil).Run(context.Background(), testProject)
	require.NoError(t, err)
	assert.Equal(t, Result{Embedded: 2}, result)
}

func TestReembedder_PolicyCanUnembed(t *testing.T) {
	f := newFixture(t)
	always := f.pipeline(t, embedding.AlwaysEmbed())
	f.addSource(t, "short", core.StatusReady, nil, "A short note about knots.")

	result, err := f.reembedder(t, always, nil, nil).Run(context.Background(), testProject)
	require.NoError(t, err)
	require.Equal(t, Result{Embedded: 1}, result)

	strict := f.pipeline(t, embedding.Threshold{MinTokens: 10000})
	result, err = f.reembedder(t, strict, &Config{Force: true}, nil).Run(context.Background(), testProject)
	require.NoError(t, err)
	assert.Equal(t, Result{Unembedded: 1}, result)

	src, err := f.sources.Get(context.Background(), testProject, "short")
	require.NoError(t, err)
	assert.False(t, src.IsEmbedded())
	n, err := f.layout.CountChunks(testProject, "short")
	require.NoError(t, err)
	assert.Zero(t, n)

	query, err := f.embedder.EmbedText(context.Background(), "knots")
	require.NoError(t, err)
	matches, err := f.vectors.Search(context.Background(), testProject, query, 10, storage.Filter{SourceID: "short"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReembedder_MissingProcessedTextFails(t *testing.T) {
	f := newFixture(t)
	f.addSource(t, "lost", core.StatusReady, nil, "Soon to vanish.")
	require.NoError(t, f.layout.DeleteProcessed(testProject, "lost"))

	result, err := f.reembedder(t, f.pipeline(t, embedding.AlwaysEmbed()), nil, nil).Run(context.Background(), testProject)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, result)
}

func TestReembedder_EmptyProject(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer

	result, err := f.reembedder(t, f.pipeline(t, embedding.AlwaysEmbed()), nil, &out).Run(context.Background(), testProject)
	require.NoError(t, err)
	assert.Zero(t, result.Total())
	assert.Contains(t, out.String(), "No ready sources")

	_, err = f.reembedder(t, f.pipeline(t, embedding.AlwaysEmbed()), nil, nil).Run(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyProjectID)
}

func TestReembedder_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.addSource(t, "alpha", core.StatusReady, nil, "Tide tables predict the height of the water.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.reembedder(t, f.pipeline(t, embedding.AlwaysEmbed()), nil, nil).Run(ctx, testProject)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceIterator_Batches(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.addSource(t, id, core.StatusReady, nil, "page "+id)
	}
	f.addSource(t, "f", core.StatusError, nil, "failed")

	var sizes []int
	it := NewSourceIterator(f.sources, 2)
	err := it.ForEach(context.Background(), testProject, func(batch []*core.Source) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}
