package extract

import (
	"archive/zip"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/lectern/pagetext"
)

// PPTX handles PowerPoint decks, one page per slide.
type PPTX struct{}

// NewPPTX creates a PowerPoint processor.
func NewPPTX() *PPTX {
	return &PPTX{}
}

func (p *PPTX) Name() string { return "pptx" }
func (p *PPTX) Type() string { return pagetext.TypePPTX }

type slidePart struct {
	number int
	file   *zip.File
}

// Extract reads ppt/slides/slideN.xml in slide order. Slides without text
// keep their page so page numbers match slide numbers.
func (p *PPTX) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	zr, err := openArchive(in.Content)
	if err != nil {
		return nil, err
	}

	var slides []slidePart
	for _, f := range zr.File {
		name, ok := strings.CutPrefix(f.Name, "ppt/slides/slide")
		if !ok {
			continue
		}
		num, ok := strings.CutSuffix(name, ".xml")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{number: n, file: f})
	}
	if len(slides) == 0 {
		return nil, ErrEmptyContent
	}
	slices.SortFunc(slides, func(a, b slidePart) int { return a.number - b.number })

	pages := make([]string, 0, len(slides))
	hasText := false
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readPart(s.file)
		if err != nil {
			return nil, err
		}
		paragraphs, err := xmlParagraphs(data)
		if err != nil {
			return nil, err
		}
		var lines []string
		for _, para := range paragraphs {
			if para = strings.TrimSpace(para); para != "" {
				lines = append(lines, para)
			}
		}
		if len(lines) > 0 {
			hasText = true
		}
		pages = append(pages, pagetext.CleanPage(strings.Join(lines, "\n")))
	}
	if !hasText {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypePPTX, in).
		Set("Slides", strconv.Itoa(len(pages)))
	doc.Pages = pages
	return doc, nil
}
