package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/lectern/pagetext"
)

// DOCX handles Word documents as a single page.
type DOCX struct{}

// NewDOCX creates a Word document processor.
func NewDOCX() *DOCX {
	return &DOCX{}
}

func (d *DOCX) Name() string { return "docx" }
func (d *DOCX) Type() string { return pagetext.TypeDOCX }

// Extract reads word/document.xml. Empty paragraphs are dropped and the
// rest separated by blank lines.
func (d *DOCX) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zr, err := openArchive(in.Content)
	if err != nil {
		return nil, err
	}

	var paragraphs []string
	found := false
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		found = true
		data, err := readPart(f)
		if err != nil {
			return nil, err
		}
		all, err := xmlParagraphs(data)
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if p = strings.TrimSpace(p); p != "" {
				paragraphs = append(paragraphs, p)
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no word/document.xml", ErrMalformedDocument)
	}
	if len(paragraphs) == 0 {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypeDOCX, in).
		Set("Paragraphs", strconv.Itoa(len(paragraphs)))
	doc.Pages = []string{pagetext.CleanPage(strings.Join(paragraphs, "\n\n"))}
	return doc, nil
}
