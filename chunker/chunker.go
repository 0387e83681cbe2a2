package chunker

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/pagetext"
)

const (
	// DefaultTargetTokens is the token budget each chunk aims for.
	DefaultTargetTokens = 200

	// DefaultTolerance is the accepted deviation from the target (±20%).
	DefaultTolerance = 0.2
)

// Chunker splits processed text into ordered, page-aware, token-budgeted chunks.
type Chunker struct {
	tokenizer Tokenizer
	target    int
	min       int
	max       int
	logger    *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithTokenizer sets the tokenizer used for budgets.
// Default is DefaultTokenizer().
func WithTokenizer(tk Tokenizer) Option {
	return func(c *Chunker) error {
		if tk == nil {
			return fmt.Errorf("tokenizer required")
		}
		c.tokenizer = tk
		return nil
	}
}

// WithTarget sets the target token count and the tolerance band around it.
func WithTarget(target int, tolerance float64) Option {
	return func(c *Chunker) error {
		if target < 1 {
			return fmt.Errorf("target must be positive, got %d", target)
		}
		if tolerance < 0 || tolerance >= 1 {
			return fmt.Errorf("tolerance must be in [0,1), got %v", tolerance)
		}
		c.setBudget(target, tolerance)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a Chunker targeting 200 tokens per chunk (160–240).
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{logger: slog.Default()}
	c.setBudget(DefaultTargetTokens, DefaultTolerance)
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.tokenizer == nil {
		c.tokenizer = DefaultTokenizer()
	}
	c.logger = c.logger.With("component", "chunker")
	return c, nil
}

func (c *Chunker) setBudget(target int, tolerance float64) {
	band := int(float64(target) * tolerance)
	c.target = target
	c.min = target - band
	c.max = target + band
	if c.min < 1 {
		c.min = 1
	}
}

// Tokenizer returns the tokenizer the chunker budgets with.
func (c *Chunker) Tokenizer() Tokenizer {
	return c.tokenizer
}

// Parse splits processed text into chunks.
//
// Each page is split independently so chunks never span pages; a page below
// the minimum budget still yields exactly one chunk. Whitespace-only pages
// and documents without pages yield nothing. Chunk indexes run 1..N across
// the whole source.
func (c *Chunker) Parse(processedText, sourceID, sourceName string) ([]core.Chunk, error) {
	doc, err := pagetext.Parse(processedText)
	if err != nil {
		return nil, err
	}

	total := len(doc.Pages)
	chunks := make([]core.Chunk, 0, total)
	index := 0
	for p, page := range doc.Pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		for _, piece := range c.split(page) {
			index++
			chunks = append(chunks, core.Chunk{
				ID:         core.FormatChunkID(sourceID, p+1, index),
				SourceID:   sourceID,
				SourceName: sourceName,
				PageNumber: p + 1,
				TotalPages: total,
				Index:      index,
				Text:       piece.text,
				TokenCount: piece.tokens,
			})
		}
	}

	c.logger.Debug("parsed chunks", "source", sourceID, "pages", total, "chunks", len(chunks))
	return chunks, nil
}

// Split splits a single page of text. Concatenating the results yields text.
func (c *Chunker) Split(text string) []string {
	pieces := c.split(text)
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.text
	}
	return out
}

type piece struct {
	text   string
	tokens int
}

// split greedily walks word segments, cutting each chunk at the best boundary
// whose running token total falls inside the budget window.
func (c *Chunker) split(text string) []piece {
	var segs []segment
	for _, s := range segmentText(text) {
		s.tokens = c.tokenizer.Count(s.text)
		segs = append(segs, splitOversized(s, c.target, c.max, c.tokenizer)...)
	}
	if len(segs) == 0 {
		return nil
	}

	prefix := c.runningTotals(segs)

	var out []piece
	for i := 0; i < len(segs); {
		end := c.nextCut(segs, prefix, i)
		chunk := joinSegments(segs[i:end])
		tokens := c.tokenizer.Count(chunk)
		// Running totals are an estimate; the joined text is the truth.
		for tokens > c.max && end > i+1 {
			end--
			chunk = joinSegments(segs[i:end])
			tokens = c.tokenizer.Count(chunk)
		}
		out = append(out, piece{text: chunk, tokens: tokens})
		i = end
	}
	return out
}

// runeCounter is implemented by tokenizers whose count depends only on the
// number of runes, which makes running totals exact.
type runeCounter interface {
	countRunes(n int) int
}

// runningTotals returns prefix token totals over segs: prefix[j] is the
// token count of the first j segments.
//
// BPE tokenizers split text before every word and give the preceding
// whitespace to the word, so "lamp " counts a token more on its own than in
// running text. Each word is therefore measured together with the whitespace
// in front of it, which keeps the totals additive.
func (c *Chunker) runningTotals(segs []segment) []int {
	prefix := make([]int, len(segs)+1)
	if rc, ok := c.tokenizer.(runeCounter); ok {
		runes := 0
		for i, s := range segs {
			runes += utf8.RuneCountInString(s.text)
			prefix[i+1] = rc.countRunes(runes)
		}
		return prefix
	}

	gap := ""
	for i, s := range segs {
		word := strings.TrimRightFunc(s.text, unicode.IsSpace)
		prefix[i+1] = prefix[i] + c.tokenizer.Count(gap+word)
		gap = s.text[len(word):]
	}
	return prefix
}

func joinSegments(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.text)
	}
	return b.String()
}

// nextCut returns the exclusive end segment index of the chunk starting at i.
func (c *Chunker) nextCut(segs []segment, prefix []int, i int) int {
	n := len(segs)
	remaining := prefix[n] - prefix[i]
	if remaining <= c.max {
		return n
	}

	lo, goal := c.min, c.target
	if remaining < c.max+c.min {
		// Split what is left evenly instead of leaving a sliver behind.
		goal = remaining / 2
		lo = remaining - c.max
		if lo < 1 {
			lo = 1
		}
	}

	best, bestScore := -1, 0
	for j := i + 1; j <= n; j++ {
		size := prefix[j] - prefix[i]
		if size > c.max {
			break
		}
		if size < lo {
			continue
		}
		score := segs[j-1].priority*1000 - abs(size-goal)
		if best < 0 || score > bestScore {
			best, bestScore = j, score
		}
	}
	if best > 0 {
		return best
	}

	// No boundary inside the window: take as much as fits, at least one segment.
	end := i + 1
	for end < n && prefix[end+1]-prefix[i] <= c.max {
		end++
	}
	return end
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
