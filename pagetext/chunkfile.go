package pagetext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Chunk file header keys, written after the document header keys.
const (
	KeyChunkID    = "Chunk ID"
	KeyPage       = "Page"
	KeyChunkIndex = "Chunk index"
	KeyTokens     = "Tokens"
)

// ErrMalformedChunkFile indicates a chunk file whose chunk keys are missing or invalid.
var ErrMalformedChunkFile = errors.New("malformed chunk file")

// ChunkFile is a single persisted chunk. Its header mirrors the header of the
// processed document it was cut from, followed by the chunk's own keys.
type ChunkFile struct {
	Type    string
	Header  map[string]string
	ChunkID string
	Page    int
	Index   int
	Tokens  int
	Text    string
}

// FormatChunkFile renders a chunk file. The chunk text follows the separator
// and a blank line, verbatim.
func FormatChunkFile(c *ChunkFile) string {
	var b strings.Builder
	for _, key := range HeaderKeys(c.Type) {
		value := c.Header[key]
		if key == KeyType {
			value = c.Type
		}
		writeHeaderLine(&b, key, value)
	}
	writeHeaderLine(&b, KeyChunkID, c.ChunkID)
	writeHeaderLine(&b, KeyPage, strconv.Itoa(c.Page))
	writeHeaderLine(&b, KeyChunkIndex, strconv.Itoa(c.Index))
	writeHeaderLine(&b, KeyTokens, strconv.Itoa(c.Tokens))
	b.WriteString(Separator)
	b.WriteString("\n\n")
	b.WriteString(c.Text)
	return b.String()
}

// ParseChunkFile reads a chunk file produced by FormatChunkFile.
func ParseChunkFile(text string) (*ChunkFile, error) {
	header, body, err := splitHeader(text)
	if err != nil {
		return nil, err
	}

	c := &ChunkFile{
		Type:    header[KeyType],
		Header:  header,
		ChunkID: header[KeyChunkID],
		Text:    strings.TrimPrefix(body, "\n"),
	}
	if c.ChunkID == "" {
		return nil, fmt.Errorf("%w: no %s", ErrMalformedChunkFile, KeyChunkID)
	}
	if c.Page, err = strconv.Atoi(header[KeyPage]); err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrMalformedChunkFile, KeyPage, header[KeyPage])
	}
	if c.Index, err = strconv.Atoi(header[KeyChunkIndex]); err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrMalformedChunkFile, KeyChunkIndex, header[KeyChunkIndex])
	}
	// Token count is informational.
	c.Tokens, _ = strconv.Atoi(header[KeyTokens])
	return c, nil
}

func writeHeaderLine(b *strings.Builder, key, value string) {
	b.WriteString("# ")
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(sanitizeHeaderValue(value))
	b.WriteByte('\n')
}
