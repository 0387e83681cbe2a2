package chunker

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultEncoding is the BPE encoding used for token counts.
	DefaultEncoding = "cl100k_base"

	// CharsPerToken is the heuristic used when no BPE encoding is available.
	CharsPerToken = 4
)

// Tokenizer counts tokens locally, without a network round trip per call.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int

	// Name identifies the tokenizer in logs and embedding info.
	Name() string
}

// Estimator approximates token counts from the rune count.
type Estimator struct {
	CharsPerToken int
}

var _ Tokenizer = Estimator{}

// Count returns ceil(runes / CharsPerToken).
func (e Estimator) Count(text string) int {
	return e.countRunes(utf8.RuneCountInString(text))
}

func (e Estimator) countRunes(n int) int {
	per := e.CharsPerToken
	if per <= 0 {
		per = CharsPerToken
	}
	return (n + per - 1) / per
}

// Name returns "estimate".
func (e Estimator) Name() string {
	return "estimate"
}

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	mu       sync.Mutex
	enc      *tiktoken.Tiktoken
	encoding string
}

var _ Tokenizer = (*Tiktoken)(nil)

// NewTiktoken loads the named BPE encoding.
// The encoding file is fetched once and cached by tiktoken-go
// (see TIKTOKEN_CACHE_DIR); counting itself is local.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{enc: enc, encoding: encoding}, nil
}

// Count returns the number of BPE tokens in text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// Name returns the encoding name.
func (t *Tiktoken) Name() string {
	return t.encoding
}

var (
	defaultOnce      sync.Once
	defaultTokenizer Tokenizer
)

// DefaultTokenizer returns the cl100k_base tokenizer, or the Estimator if the
// encoding cannot be loaded. It never fails.
func DefaultTokenizer() Tokenizer {
	defaultOnce.Do(func() {
		tk, err := NewTiktoken(DefaultEncoding)
		if err != nil {
			slog.Default().Warn("BPE encoding unavailable, estimating token counts",
				"encoding", DefaultEncoding, "err", err)
			defaultTokenizer = Estimator{CharsPerToken: CharsPerToken}
			return
		}
		defaultTokenizer = tk
	})
	return defaultTokenizer
}
