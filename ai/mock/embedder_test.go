package mock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestBagOfWords_UnitLength(t *testing.T) {
	for _, text := range []string{"", "owls", "Owls hunt at night, owls sleep by day."} {
		v := BagOfWords(text, 64)
		require.Len(t, v, 64)
		assert.InDelta(t, 1.0, math.Sqrt(cosine(v, v)), 1e-5, text)
	}
}

func TestBagOfWords_SharedWordsScoreHigher(t *testing.T) {
	query := BagOfWords("how do owls hunt", DefaultDimensions)
	owls := BagOfWords("Owls hunt small mammals at night.", DefaultDimensions)
	taxes := BagOfWords("Quarterly tax filings are due in April.", DefaultDimensions)

	assert.Greater(t, cosine(query, owls), cosine(query, taxes))
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	a, err := m.EmbedText(context.Background(), "same text")
	require.NoError(t, err)
	b, err := m.EmbedTexts(context.Background(), []string{"same text", "other"})
	require.NoError(t, err)

	assert.Equal(t, a, b[0])
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, 3, m.TextCount())
}

func TestMockEmbedder_InjectedFailure(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	assert.EqualError(t, err, "provider down")

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedTexts(context.Background(), []string{"x"})
	assert.NoError(t, err)
}

func TestMockEmbedder_ConcurrentUse(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimensions = 8

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.EmbedText(context.Background(), "text")
			assert.NoError(t, err)
			assert.Len(t, v, 8)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())
}

func TestMockProvider_NilServices(t *testing.T) {
	p := NewMockProviderWithServices(NewMockEmbedder(), nil, nil, nil)

	assert.NotNil(t, p.Embedder())
	assert.Nil(t, p.Summarizer())
	assert.Nil(t, p.ImageExtractor())
	assert.Nil(t, p.Transcriber())
}
