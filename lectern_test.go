package lectern

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/search"
	"github.com/poiesic/lectern/storage"
)

const testProject = "project-1"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Chunking.Tokenizer = config.TokenizerEstimate
	return cfg
}

func openTest(t *testing.T, cfg *config.Config, opts ...Option) (*KnowledgeBase, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), nil, nil, nil)
	opts = append([]Option{WithConfig(cfg), WithAIProvider(provider)}, opts...)
	kb, err := Open(context.Background(), cfg.DataDir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { kb.Close() })
	return kb, provider
}

func waitIdle(t *testing.T, kb *KnowledgeBase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, kb.Wait(ctx))
}

// longText returns roughly words*2 estimated tokens of paragraphs.
func longText(words int) string {
	var b strings.Builder
	for i := 1; i <= words; i++ {
		b.WriteString(fmt.Sprintf("word%03d", i%1000))
		switch {
		case i == words:
		case i%120 == 0:
			b.WriteString("\n\n")
		case i%12 == 0:
			b.WriteString(". ")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorStore.Backend = "cassandra"

	_, err := Open(context.Background(), cfg.DataDir, WithConfig(cfg), WithAIProvider(mock.NewMockProvider()), WithInMemoryIndex())
	assert.Error(t, err)
}

func TestShortTextIsNotEmbedded(t *testing.T) {
	kb, _ := openTest(t, testConfig(t), WithInMemoryIndex())
	ctx := context.Background()

	text := "Ferries leave the north pier every hour on the hour"
	src, err := kb.AddText(ctx, testProject, "ferries", text, nil)
	require.NoError(t, err)
	waitIdle(t, kb)

	got, err := kb.Source(ctx, testProject, src.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, got.Status)
	assert.False(t, got.IsEmbedded())

	processed, err := kb.layout.ReadProcessed(testProject, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(processed, "TEXT PAGE 1 of 1"))
	assert.Equal(t, 1, strings.Count(processed, "=== TEXT PAGE"))
}

func TestLargeTextIsEmbedded(t *testing.T) {
	kb, provider := openTest(t, testConfig(t), WithInMemoryIndex())
	ctx := context.Background()

	// About 20,000 estimated tokens.
	src, err := kb.AddText(ctx, testProject, "almanac", longText(9800), nil)
	require.NoError(t, err)
	waitIdle(t, kb)

	got, err := kb.Source(ctx, testProject, src.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusReady, got.Status)
	require.True(t, got.IsEmbedded())
	assert.InDelta(t, 100, got.EmbeddingInfo.ChunkCount, 20)
	assert.Equal(t, "mock-embedder", got.EmbeddingInfo.Model)

	query, err := provider.GetMockEmbedder().EmbedText(ctx, "word042")
	require.NoError(t, err)
	matches, err := kb.vectors.Search(ctx, testProject, query, 5, storage.Filter{SourceID: src.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
	other, err := kb.vectors.Search(ctx, "project-2", query, 5, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, other)

	result, err := kb.Search(ctx, testProject, src.ID, "word042 word043")
	require.NoError(t, err)
	assert.Equal(t, core.SearchTypeSemantic, result.SearchType)
	require.NotEmpty(t, result.Matches)

	citation, err := kb.ResolveCitation(ctx, testProject, result.Matches[0].ChunkID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, citation.SourceID)
	assert.Equal(t, result.Matches[0].Text, citation.Text)
}

func TestSearchUnembeddedReturnsFullContent(t *testing.T) {
	kb, _ := openTest(t, testConfig(t), WithInMemoryIndex())
	ctx := context.Background()

	src, err := kb.AddText(ctx, testProject, "tides", "Spring tides follow the new and full moon.", nil)
	require.NoError(t, err)
	waitIdle(t, kb)

	result, err := kb.Search(ctx, testProject, src.ID, "moon")
	require.NoError(t, err)
	assert.Equal(t, core.SearchTypeFullContent, result.SearchType)

	processed, err := kb.layout.ReadProcessed(testProject, src.ID)
	require.NoError(t, err)
	assert.Equal(t, processed, result.Content)

	_, err = kb.SetActive(ctx, testProject, src.ID, false)
	require.NoError(t, err)
	_, err = kb.Search(ctx, testProject, src.ID, "moon")
	assert.ErrorIs(t, err, search.ErrSourceInactive)
}

func TestResolveCitation_Malformed(t *testing.T) {
	kb, _ := openTest(t, testConfig(t), WithInMemoryIndex())
	ctx := context.Background()

	for _, token := range []string{"", "nonsense", "abc_page_x_chunk_1", "_page_1_chunk_1", "../../etc_page_1_chunk_1"} {
		assert.NotPanics(t, func() {
			_, err := kb.ResolveCitation(ctx, testProject, token)
			assert.ErrorIs(t, err, search.ErrCitationNotFound, token)
		})
	}
}

func TestReembedAfterPolicyChange(t *testing.T) {
	cfg := testConfig(t)
	kb, _ := openTest(t, cfg, WithInMemoryIndex())
	ctx := context.Background()

	src, err := kb.AddText(ctx, testProject, "ferries", "Ferries leave the north pier every hour.", nil)
	require.NoError(t, err)
	waitIdle(t, kb)
	require.NoError(t, kb.Close())

	cfg.Embedding.Always = true
	kb, _ = openTest(t, cfg, WithInMemoryIndex())
	_, err = kb.AddText(ctx, testProject, "piers", "The south pier closes in winter.", nil)
	require.NoError(t, err)
	waitIdle(t, kb)

	// The in-memory index started empty, so only the new source exists.
	_, err = kb.Source(ctx, testProject, src.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	result, err := kb.Reembed(ctx, testProject, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total())
}

func TestSourcesSurviveReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	kb, _ := openTest(t, cfg)
	src, err := kb.AddText(ctx, testProject, "ferries", "Ferries leave the north pier every hour.", nil)
	require.NoError(t, err)
	waitIdle(t, kb)
	require.NoError(t, kb.Close())

	kb, _ = openTest(t, cfg)
	sources, err := kb.Sources(ctx, testProject)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, src.ID, sources[0].ID)
	assert.Equal(t, core.StatusReady, sources[0].Status)

	n, err := kb.Resume(ctx, testProject)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteSourceThroughKnowledgeBase(t *testing.T) {
	kb, _ := openTest(t, testConfig(t), WithInMemoryIndex())
	ctx := context.Background()

	src, err := kb.AddText(ctx, testProject, "ferries", "Ferries leave the north pier every hour.", nil)
	require.NoError(t, err)
	waitIdle(t, kb)
	assert.NotEmpty(t, kb.Tasks(testProject, src.ID))

	require.NoError(t, kb.DeleteSource(ctx, testProject, src.ID))
	_, err = kb.Source(ctx, testProject, src.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = kb.Retry(ctx, testProject, src.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExtensions(t *testing.T) {
	kb, _ := openTest(t, testConfig(t), WithInMemoryIndex())
	exts := kb.Extensions()
	assert.Contains(t, exts, "txt")
	assert.Contains(t, exts, "md")
	assert.Contains(t, exts, "csv")
	assert.Contains(t, exts, "link")
}
