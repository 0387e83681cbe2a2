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

// Package pagetext defines the canonical processed-text format every
// processor emits and the chunker consumes.
//
// A processed document is a metadata header terminated by a separator line,
// followed by one block per page:
//
//	# Source: report.pdf
//	# Type: PDF
//	# Source ID: 0b6c...
//	# Total pages: 2
//	# Processed at: 2025-01-02T15:04:05Z
//	# ---
//
//	=== PDF PAGE 1 of 2 ===
//	first page text
//	=== PDF PAGE 2 of 2 ===
//	second page text
//
// Sources without natural pages (plain text, DOCX, transcripts, web pages)
// are written as a single page "1 of 1".
package pagetext

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Separator terminates the metadata header.
const Separator = "# ---"

// Document types as they appear in page markers.
const (
	TypePDF      = "PDF"
	TypeText     = "TEXT"
	TypeDOCX     = "DOCX"
	TypePPTX     = "PPTX"
	TypeCSV      = "CSV"
	TypeImage    = "IMAGE"
	TypeAudio    = "AUDIO"
	TypeLink     = "LINK"
	TypeYouTube  = "YOUTUBE"
	TypeResearch = "RESEARCH"
)

// Common header keys, present for every type.
const (
	KeySource      = "Source"
	KeyType        = "Type"
	KeySourceID    = "Source ID"
	KeyTotalPages  = "Total pages"
	KeyProcessedAt = "Processed at"
)

var commonKeys = []string{KeySource, KeyType, KeySourceID, KeyTotalPages, KeyProcessedAt}

// typeKeys lists the additional keys each document type always carries.
var typeKeys = map[string][]string{
	TypePDF:      {"Extraction"},
	TypeText:     {"Characters"},
	TypeDOCX:     {"Paragraphs"},
	TypePPTX:     {"Slides"},
	TypeCSV:      {"Columns", "Rows"},
	TypeImage:    {"Model"},
	TypeAudio:    {"Model", "Duration"},
	TypeLink:     {"URL", "Title"},
	TypeYouTube:  {"URL", "Title"},
	TypeResearch: {"Query"},
}

var (
	// ErrMissingSeparator indicates the header separator line was not found.
	ErrMissingSeparator = errors.New("processed text has no header separator")
	// ErrMalformedMarker indicates a page marker that does not fit the grammar.
	ErrMalformedMarker = errors.New("malformed page marker")
)

var markerPattern = regexp.MustCompile(`(?m)^=== ([A-Z]+) PAGE ([0-9]+) of ([0-9]+) ===$`)

// HeaderKeys returns the fixed, ordered header key set for a type.
func HeaderKeys(docType string) []string {
	keys := make([]string, 0, len(commonKeys)+len(typeKeys[docType]))
	keys = append(keys, commonKeys...)
	return append(keys, typeKeys[docType]...)
}

// Document is a processed source: typed, with a header and ordered pages.
type Document struct {
	Type   string
	Header map[string]string
	Pages  []string
}

// New creates an empty document of the given type.
func New(docType string) *Document {
	return &Document{Type: docType, Header: map[string]string{}}
}

// Set records a header value.
func (d *Document) Set(key, value string) *Document {
	if d.Header == nil {
		d.Header = map[string]string{}
	}
	d.Header[key] = value
	return d
}

// Text returns all page bodies joined by blank lines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n\n")
}

// Marker renders the page marker for page n of total.
func Marker(docType string, n, total int) string {
	return fmt.Sprintf("=== %s PAGE %d of %d ===", docType, n, total)
}

// Format renders the document in the canonical grammar.
// Every header key of the type is emitted, empty or not, and the total page
// count is always derived from the pages themselves.
func Format(d *Document) string {
	var b strings.Builder
	total := len(d.Pages)
	for _, key := range HeaderKeys(d.Type) {
		value := d.Header[key]
		switch key {
		case KeyType:
			value = d.Type
		case KeyTotalPages:
			value = strconv.Itoa(total)
		}
		writeHeaderLine(&b, key, value)
	}
	b.WriteString(Separator)
	b.WriteString("\n\n")
	for i, page := range d.Pages {
		b.WriteString(Marker(d.Type, i+1, total))
		b.WriteByte('\n')
		b.WriteString(page)
		if i < total-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Parse reads a document in the canonical grammar.
// Page bodies are the exact text between a marker line and the next marker line.
func Parse(text string) (*Document, error) {
	header, body, err := splitHeader(text)
	if err != nil {
		return nil, err
	}

	doc := &Document{Header: header, Type: header[KeyType]}
	locs := markerPattern.FindAllStringSubmatchIndex(body, -1)
	for i, loc := range locs {
		docType := body[loc[2]:loc[3]]
		n, _ := strconv.Atoi(body[loc[4]:loc[5]])
		total, _ := strconv.Atoi(body[loc[6]:loc[7]])
		if n != i+1 || total != len(locs) {
			return nil, fmt.Errorf("%w: page %d of %d at position %d of %d", ErrMalformedMarker, n, total, i+1, len(locs))
		}
		if doc.Type == "" {
			doc.Type = docType
		}

		start := loc[1]
		if start < len(body) && body[start] == '\n' {
			start++
		}
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
			// The newline before the next marker belongs to the marker.
			if end > start && body[end-1] == '\n' {
				end--
			}
		}
		if end < start {
			end = start
		}
		doc.Pages = append(doc.Pages, body[start:end])
	}
	return doc, nil
}

// Body returns everything after the header separator.
func Body(text string) (string, error) {
	_, body, err := splitHeader(text)
	return body, err
}

// Header parses only the metadata header.
func Header(text string) (map[string]string, error) {
	header, _, err := splitHeader(text)
	return header, err
}

func splitHeader(text string) (map[string]string, string, error) {
	header := map[string]string{}
	rest := text
	for {
		line, remainder, found := strings.Cut(rest, "\n")
		if strings.TrimRight(line, "\r") == Separator {
			return header, remainder, nil
		}
		if !found {
			return nil, "", ErrMissingSeparator
		}
		if key, value, ok := strings.Cut(strings.TrimPrefix(line, "# "), ": "); ok && strings.HasPrefix(line, "# ") {
			header[key] = value
		} else if k, ok := strings.CutSuffix(strings.TrimPrefix(line, "# "), ":"); ok && strings.HasPrefix(line, "# ") {
			header[k] = ""
		}
		rest = remainder
	}
}

// CleanPage prepares extracted text for use as a page body. Line endings are
// normalised to "\n", invalid UTF-8 is replaced, trailing spaces and
// surrounding blank lines are dropped, and any line that would read as a page
// marker is indented by one space so it cannot split the page.
func CleanPage(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n").Replace(text)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if markerPattern.MatchString(line) || line == Separator {
			line = " " + line
		}
		lines[i] = line
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

func sanitizeHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
