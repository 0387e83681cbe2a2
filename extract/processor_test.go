package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/pagetext"
)

func TestRegistry_LookupNormalizesExtension(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(".TXT", NewText()))

	p, err := r.Lookup("txt")
	require.NoError(t, err)
	assert.Equal(t, "text", p.Name())

	p, err = r.Lookup(".Txt")
	require.NoError(t, err)
	assert.Equal(t, pagetext.TypeText, p.Type())
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("exe")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistry_RejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register("", NewText()))
	assert.Error(t, r.Register("txt", nil))
	assert.Empty(t, r.Extensions())
}

func TestNewDefaultRegistry_WithoutServices(t *testing.T) {
	r, err := NewDefaultRegistry(Services{})
	require.NoError(t, err)

	for _, ext := range []string{"txt", "md", "docx", "pptx", "csv", "link", "research"} {
		_, err := r.Lookup(ext)
		assert.NoError(t, err, ext)
	}
	for _, ext := range []string{"pdf", "png", "mp3"} {
		_, err := r.Lookup(ext)
		assert.ErrorIs(t, err, ErrUnsupportedType, ext)
	}
}

func TestNewDefaultRegistry_WithServices(t *testing.T) {
	r, err := NewDefaultRegistry(Services{
		PageReader:     &fakePages{pages: []string{"one"}},
		ImageExtractor: mock.NewMockImageExtractor(),
		Transcriber:    mock.NewMockTranscriber(),
	})
	require.NoError(t, err)

	p, err := r.Lookup("pdf")
	require.NoError(t, err)
	assert.Equal(t, pagetext.TypePDF, p.Type())

	p, err = r.Lookup("JPEG")
	require.NoError(t, err)
	assert.Equal(t, pagetext.TypeImage, p.Type())

	p, err = r.Lookup("wav")
	require.NoError(t, err)
	assert.Equal(t, pagetext.TypeAudio, p.Type())
}

func TestProcessors_ProduceParseableDocuments(t *testing.T) {
	in := Input{SourceID: "src-1", SourceName: "notes.txt", Extension: "txt", Content: []byte("Some notes.")}

	doc, err := NewText().Extract(context.Background(), in)
	require.NoError(t, err)

	parsed, err := pagetext.Parse(pagetext.Format(doc))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", parsed.Header[pagetext.KeySource])
	assert.Equal(t, "src-1", parsed.Header[pagetext.KeySourceID])
	assert.Equal(t, "1", parsed.Header[pagetext.KeyTotalPages])
	assert.NotEmpty(t, parsed.Header[pagetext.KeyProcessedAt])
	assert.Equal(t, []string{"Some notes."}, parsed.Pages)
}
