package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/pagetext"
)

// fakePages is an in-memory PageReader.
type fakePages struct {
	pages    []string
	failPage int

	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
}

func (f *fakePages) Name() string { return "fake" }

func (f *fakePages) PageCount(ctx context.Context, path string) (int, error) {
	return len(f.pages), nil
}

func (f *fakePages) PageText(ctx context.Context, path string, page int) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if n > f.maxSeen {
		f.maxSeen = n
	}
	f.mu.Unlock()

	if page == f.failPage {
		return "", errors.New("corrupt page")
	}
	return f.pages[page-1], nil
}

func TestPDF_ExtractsPagesInOrder(t *testing.T) {
	reader := &fakePages{pages: []string{"page one\f", "page two", "page three"}}
	p, err := NewPDF(reader, WithPageConcurrency(2))
	require.NoError(t, err)

	doc, err := p.Extract(context.Background(), Input{SourceID: "s", Path: "/tmp/x.pdf"})
	require.NoError(t, err)

	assert.Equal(t, pagetext.TypePDF, doc.Type)
	assert.Equal(t, "fake", doc.Header["Extraction"])
	assert.Equal(t, []string{"page one", "page two", "page three"}, doc.Pages)
	assert.LessOrEqual(t, reader.maxSeen, int32(2))
}

func TestPDF_AnyPageFailureFailsWholeDocument(t *testing.T) {
	pages := make([]string, 12)
	for i := range pages {
		pages[i] = fmt.Sprintf("page %d", i+1)
	}
	p, err := NewPDF(&fakePages{pages: pages, failPage: 7})
	require.NoError(t, err)

	doc, err := p.Extract(context.Background(), Input{Path: "/tmp/x.pdf"})

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrPageFailed)
	assert.Contains(t, err.Error(), "page 7 of 12")
}

func TestPDF_NoTextLayer(t *testing.T) {
	p, err := NewPDF(&fakePages{pages: []string{"  ", "\f"}})
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{Path: "/tmp/x.pdf"})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestPDF_RequiresPath(t *testing.T) {
	p, err := NewPDF(&fakePages{pages: []string{"x"}})
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{Content: []byte("%PDF")})
	assert.Error(t, err)
}

func TestNewPDF_Validation(t *testing.T) {
	_, err := NewPDF(nil)
	assert.Error(t, err)

	_, err = NewPDF(&fakePages{}, WithPageConcurrency(0))
	assert.Error(t, err)
}

// scriptedRunner answers commands from a table keyed by program name.
type scriptedRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   map[string]string
	err   error
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if name == "pdftotext" {
		return []byte("text of page " + args[1]), nil
	}
	return []byte(r.out[name]), nil
}

func TestPdfToText_PageCount(t *testing.T) {
	runner := &scriptedRunner{out: map[string]string{
		"pdfinfo": "Title:          Report\nPages:          3\nEncrypted:      no\n",
	}}
	reader := NewPdfToText(runner)

	n, err := reader.PageCount(context.Background(), "/data/r.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"pdfinfo", "/data/r.pdf"}, runner.calls[0])
}

func TestPdfToText_PageCountMissing(t *testing.T) {
	reader := NewPdfToText(&scriptedRunner{out: map[string]string{"pdfinfo": "Title: x\n"}})

	_, err := reader.PageCount(context.Background(), "/data/r.pdf")
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestPdfToText_PageText(t *testing.T) {
	runner := &scriptedRunner{}
	reader := NewPdfToText(runner)

	text, err := reader.PageText(context.Background(), "/data/r.pdf", 2)
	require.NoError(t, err)
	assert.Equal(t, "text of page 2", text)
	assert.Equal(t, "pdftotext -f 2 -l 2 -layout -enc UTF-8 /data/r.pdf -", strings.Join(runner.calls[0], " "))
}

func TestPDF_WithPdfToText(t *testing.T) {
	runner := &scriptedRunner{out: map[string]string{"pdfinfo": "Pages: 2\n"}}
	p, err := NewPDF(NewPdfToText(runner))
	require.NoError(t, err)

	doc, err := p.Extract(context.Background(), Input{Path: "/data/r.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text of page 1", "text of page 2"}, doc.Pages)
	assert.Equal(t, "pdftotext", doc.Header["Extraction"])
}

func TestPdfToText_CommandError(t *testing.T) {
	runner := &scriptedRunner{err: ErrCommandFailed}
	p, err := NewPDF(NewPdfToText(runner))
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{Path: "/data/r.pdf"})
	assert.ErrorIs(t, err, ErrCommandFailed)
}
