package extract

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lectern/pagetext"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text handles plain text and markdown as a single page.
type Text struct{}

// NewText creates a plain text processor.
func NewText() *Text {
	return &Text{}
}

func (t *Text) Name() string { return "text" }
func (t *Text) Type() string { return pagetext.TypeText }

// Extract decodes the content as UTF-8.
func (t *Text) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := pagetext.CleanPage(string(bytes.TrimPrefix(in.Content, utf8BOM)))
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypeText, in).
		Set("Characters", strconv.Itoa(utf8.RuneCountInString(text)))
	doc.Pages = []string{text}
	return doc, nil
}
