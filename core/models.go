package core

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns a deterministic BLAKE2b fingerprint of text.
// Identical content always produces the identical hash.
func ContentHash(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceCategory groups sources by how they entered a project.
type SourceCategory string

const (
	// CategoryDocument is an uploaded file (pdf, docx, pptx, csv, txt).
	CategoryDocument SourceCategory = "document"
	// CategoryImage is an uploaded image.
	CategoryImage SourceCategory = "image"
	// CategoryAudio is an uploaded audio recording.
	CategoryAudio SourceCategory = "audio"
	// CategoryLink is a web page or video link.
	CategoryLink SourceCategory = "link"
	// CategoryText is pasted text.
	CategoryText SourceCategory = "text"
	// CategoryResearch is text produced by a research agent.
	CategoryResearch SourceCategory = "research"
)

// Source is one ingested content unit with its own lifecycle.
// Sources are owned by the source repository and only mutated through it.
type Source struct {
	ID             string
	ProjectID      string
	Name           string
	Category       SourceCategory
	FileExtension  string // lowercase, without the leading dot
	Status         SourceStatus
	Active         bool
	ProcessingInfo ProcessingInfo
	EmbeddingInfo  *EmbeddingInfo // nil until the embedding stage has run
	SummaryInfo    *SummaryInfo   // nil until a summary has been attempted
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy of the source.
func (s *Source) Clone() *Source {
	if s == nil {
		return nil
	}
	c := *s
	if s.EmbeddingInfo != nil {
		ei := *s.EmbeddingInfo
		c.EmbeddingInfo = &ei
	}
	if s.SummaryInfo != nil {
		si := *s.SummaryInfo
		si.KeyTopics = append([]string(nil), s.SummaryInfo.KeyTopics...)
		c.SummaryInfo = &si
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// IsEmbedded reports whether the source's chunks live in the vector store.
func (s *Source) IsEmbedded() bool {
	return s.EmbeddingInfo != nil && s.EmbeddingInfo.IsEmbedded
}

// ProcessingInfo records the outcome of the most recent processing attempt.
type ProcessingInfo struct {
	Attempt     int    // Incremented on every transition into processing
	Processor   string // Name of the processor that handled the source
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string // Cause of the last failure, empty on success
	ContentHash string // ContentHash of the processed text
	PageCount   int
	CharCount   int
}

// EmbeddingInfo describes whether and how a source was embedded.
type EmbeddingInfo struct {
	IsEmbedded bool
	TokenCount int
	ChunkCount int
	Reason     string // Why the source is not embedded, if it isn't
	Model      string
	EmbeddedAt time.Time
}

// SummaryInfo holds the generated summary of a source.
type SummaryInfo struct {
	Summary     string
	KeyTopics   []string
	Model       string
	GeneratedAt time.Time
	Error       string
}

// Chunk is a token-bounded slice of a source's processed text.
// It is the unit of embedding and citation.
type Chunk struct {
	ID         string
	SourceID   string
	SourceName string
	PageNumber int
	TotalPages int
	Index      int // 1-based, sequential across the whole source
	Text       string
	TokenCount int
}

// VectorMetadata is stored alongside every vector.
type VectorMetadata struct {
	SourceID   string `json:"source_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	SourceName string `json:"source_name"`
}

// VectorRecord is a chunk embedding as stored in a vector store.
// ID always equals the chunk id.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata VectorMetadata
}

// VectorMatch is a single similarity search hit.
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata VectorMetadata
}

// SearchType tells callers how a search result was produced.
type SearchType string

const (
	// SearchTypeFullContent means the whole processed text is returned verbatim.
	SearchTypeFullContent SearchType = "full_content"
	// SearchTypeSemantic means ranked chunk matches are returned.
	SearchTypeSemantic SearchType = "semantic"
)

// SearchMatch is a ranked chunk returned by semantic search.
type SearchMatch struct {
	ChunkID    string
	PageNumber int
	Score      float32
	Text       string
	Verbatim   bool // Text contains every content word of the query
}

// SearchResult is the answer to a retrieval request against one source.
type SearchResult struct {
	SourceID   string
	SourceName string
	SearchType SearchType
	Query      string
	Content    string        // Full processed text for full_content results
	Matches    []SearchMatch // Ranked matches for semantic results
}

// Context renders the result as plain text for a conversational layer.
// Semantic matches are tagged with their chunk id so answers can cite them.
func (r *SearchResult) Context() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", r.SourceName)
	if r.SearchType == SearchTypeFullContent {
		b.WriteString("\n")
		b.WriteString(r.Content)
		return b.String()
	}
	for _, m := range r.Matches {
		fmt.Fprintf(&b, "\n[%s] (page %d, score %.3f)\n%s\n", m.ChunkID, m.PageNumber, m.Score, m.Text)
	}
	return b.String()
}

// Citation is the persisted chunk a citation token points at.
type Citation struct {
	ChunkID    string
	SourceID   string
	SourceName string
	PageNumber int
	Text       string
}
