// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/lectern/pagetext"
)

// PageReader reads a paginated document from disk.
type PageReader interface {
	// Name identifies the extraction method in the document header.
	Name() string

	// PageCount returns the number of pages in the document at path.
	PageCount(ctx context.Context, path string) (int, error)

	// PageText returns the text of one 1-based page.
	PageText(ctx context.Context, path string, page int) (string, error)
}

// CommandRunner runs an external program and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit becomes ErrCommandFailed
// carrying the command's standard error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrCommandFailed, name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// PdfToText reads PDFs with poppler's pdfinfo and pdftotext.
type PdfToText struct {
	runner CommandRunner
}

// NewPdfToText creates a PageReader backed by poppler-utils.
// A nil runner uses ExecRunner.
func NewPdfToText(runner CommandRunner) *PdfToText {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PdfToText{runner: runner}
}

// Available reports whether the poppler tools are on PATH.
func (p *PdfToText) Available() bool {
	for _, tool := range []string{"pdfinfo", "pdftotext"} {
		if _, err := exec.LookPath(tool); err != nil {
			return false
		}
	}
	return true
}

func (p *PdfToText) Name() string { return "pdftotext" }

// PageCount parses the "Pages:" line of pdfinfo's output.
func (p *PdfToText) PageCount(ctx context.Context, path string) (int, error) {
	out, err := p.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return 0, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		value, ok := strings.CutPrefix(scanner.Text(), "Pages:")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("%w: pdfinfo page count %q", ErrCommandFailed, value)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: pdfinfo reported no page count", ErrCommandFailed)
}

// PageText extracts one page with layout preserved.
func (p *PdfToText) PageText(ctx context.Context, path string, page int) (string, error) {
	n := strconv.Itoa(page)
	out, err := p.runner.Run(ctx, "pdftotext", "-f", n, "-l", n, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// PDF extracts PDFs page by page, reading pages concurrently.
type PDF struct {
	reader      PageReader
	concurrency int
	logger      *slog.Logger
}

// PDFOption configures a PDF processor.
type PDFOption func(*PDF) error

// WithPageConcurrency bounds how many pages are read at once.
// Default is the number of CPUs.
func WithPageConcurrency(n int) PDFOption {
	return func(p *PDF) error {
		if n < 1 {
			return fmt.Errorf("page concurrency must be positive, got %d", n)
		}
		p.concurrency = n
		return nil
	}
}

// WithPDFLogger sets a custom logger.
func WithPDFLogger(logger *slog.Logger) PDFOption {
	return func(p *PDF) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPDF creates a PDF processor reading pages through reader.
func NewPDF(reader PageReader, opts ...PDFOption) (*PDF, error) {
	if reader == nil {
		return nil, errors.New("page reader required")
	}
	p := &PDF{
		reader:      reader,
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pdf-processor")
	return p, nil
}

func (p *PDF) Name() string { return "pdf" }
func (p *PDF) Type() string { return pagetext.TypePDF }

// Extract reads every page. If any page fails the whole extraction fails
// and no document is returned.
func (p *PDF) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	if in.Path == "" {
		return nil, errors.New("pdf extraction needs the raw file path")
	}
	start := time.Now()

	total, err := p.reader.PageCount(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	if total < 1 {
		return nil, ErrEmptyContent
	}

	pages := make([]string, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range pages {
		g.Go(func() error {
			text, err := p.reader.PageText(gctx, in.Path, i+1)
			if err != nil {
				return fmt.Errorf("%w: page %d of %d: %w", ErrPageFailed, i+1, total, err)
			}
			pages[i] = pagetext.CleanPage(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hasText := false
	for _, page := range pages {
		if strings.TrimSpace(page) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		// Scanned PDFs have no text layer.
		return nil, fmt.Errorf("%w: no text layer in %d pages", ErrEmptyContent, total)
	}

	p.logger.Debug("extracted pdf", "source", in.SourceID, "pages", total, "elapsed", time.Since(start))
	doc := newDocument(pagetext.TypePDF, in).Set("Extraction", p.reader.Name())
	doc.Pages = pages
	return doc, nil
}
