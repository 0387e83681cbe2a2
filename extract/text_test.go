package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/pagetext"
)

func TestText_Extract(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Hello,\r\nworld.\r\n")...)

	doc, err := NewText().Extract(context.Background(), Input{SourceName: "a.txt", Content: content})
	require.NoError(t, err)

	assert.Equal(t, pagetext.TypeText, doc.Type)
	assert.Equal(t, []string{"Hello,\nworld."}, doc.Pages)
	assert.Equal(t, "13", doc.Header["Characters"])
}

func TestText_Empty(t *testing.T) {
	_, err := NewText().Extract(context.Background(), Input{Content: []byte(" \n\t\n")})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestText_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewText().Extract(ctx, Input{Content: []byte("text")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResearch_Extract(t *testing.T) {
	raw := FormatResearch("history of  the\nprinting press", "Gutenberg built a press around 1440.")

	doc, err := NewResearch().Extract(context.Background(), Input{Content: []byte(raw)})
	require.NoError(t, err)

	assert.Equal(t, pagetext.TypeResearch, doc.Type)
	assert.Equal(t, "history of the printing press", doc.Header["Query"])
	assert.Equal(t, []string{"Gutenberg built a press around 1440."}, doc.Pages)
}

func TestResearch_WithoutQueryLine(t *testing.T) {
	doc, err := NewResearch().Extract(context.Background(), Input{Content: []byte("Just findings.")})
	require.NoError(t, err)

	assert.Empty(t, doc.Header["Query"])
	assert.Equal(t, []string{"Just findings."}, doc.Pages)
}
