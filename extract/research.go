package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/poiesic/lectern/pagetext"
)

const researchQueryPrefix = "Query: "

// FormatResearch renders agent-researched text as the raw content of a
// .research source. The query that produced it is kept on the first line.
func FormatResearch(query, text string) string {
	return researchQueryPrefix + strings.Join(strings.Fields(query), " ") + "\n\n" + text
}

// Research handles text produced by a research agent.
type Research struct{}

// NewResearch creates a research processor.
func NewResearch() *Research {
	return &Research{}
}

func (r *Research) Name() string { return "research" }
func (r *Research) Type() string { return pagetext.TypeResearch }

// Extract splits the query line from the researched text. Content without a
// query line is used whole.
func (r *Research) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := string(bytes.TrimPrefix(in.Content, utf8BOM))

	var query string
	if first, rest, ok := strings.Cut(raw, "\n"); ok && strings.HasPrefix(first, researchQueryPrefix) {
		query = strings.TrimSpace(strings.TrimPrefix(first, researchQueryPrefix))
		raw = rest
	}

	text := pagetext.CleanPage(raw)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypeResearch, in).Set("Query", query)
	doc.Pages = []string{text}
	return doc, nil
}
