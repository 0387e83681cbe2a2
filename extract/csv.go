package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/poiesic/lectern/pagetext"
)

// DefaultRowsPerPage is how many data rows a CSV page holds.
const DefaultRowsPerPage = 50

// CSV handles comma separated files. Data rows are paginated and every page
// repeats the column names so each page can be read on its own.
type CSV struct {
	rowsPerPage int
}

// CSVOption configures a CSV processor.
type CSVOption func(*CSV) error

// WithRowsPerPage sets how many data rows go on one page.
func WithRowsPerPage(n int) CSVOption {
	return func(c *CSV) error {
		if n < 1 {
			return fmt.Errorf("rows per page must be positive, got %d", n)
		}
		c.rowsPerPage = n
		return nil
	}
}

// NewCSV creates a CSV processor.
func NewCSV(opts ...CSVOption) (*CSV, error) {
	c := &CSV{rowsPerPage: DefaultRowsPerPage}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *CSV) Name() string { return "csv" }
func (c *CSV) Type() string { return pagetext.TypeCSV }

// Extract renders each data row as "column: value" pairs.
func (c *CSV) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(in.Content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	columns, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyContent
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	for i := range columns {
		columns[i] = strings.TrimSpace(columns[i])
		if columns[i] == "" {
			columns[i] = "column " + strconv.Itoa(i+1)
		}
	}

	var (
		pages []string
		page  strings.Builder
		rows  int
	)
	flush := func() {
		if page.Len() > 0 {
			pages = append(pages, pagetext.CleanPage(page.String()))
			page.Reset()
		}
	}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedDocument, rows+2, err)
		}
		if isBlankRecord(record) {
			continue
		}
		if rows%c.rowsPerPage == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			flush()
		} else {
			page.WriteString("\n")
		}
		rows++
		page.WriteString(formatRow(columns, record, rows))
	}
	flush()
	if rows == 0 {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypeCSV, in).
		Set("Columns", strings.Join(columns, ", ")).
		Set("Rows", strconv.Itoa(rows))
	doc.Pages = pages
	return doc, nil
}

func formatRow(columns, record []string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Row %d:", n)
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		name := "column " + strconv.Itoa(i+1)
		if i < len(columns) {
			name = columns[i]
		}
		fmt.Fprintf(&b, " %s: %s;", name, value)
	}
	return strings.TrimSuffix(b.String(), ";")
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
