package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_Count(t *testing.T) {
	e := Estimator{CharsPerToken: 4}
	assert.Equal(t, 0, e.Count(""))
	assert.Equal(t, 1, e.Count("abc"))
	assert.Equal(t, 1, e.Count("abcd"))
	assert.Equal(t, 2, e.Count("abcde"))
	// Runes, not bytes.
	assert.Equal(t, 1, e.Count("äöüß"))
}

func TestEstimator_ZeroValueUsesDefault(t *testing.T) {
	assert.Equal(t, 2, Estimator{}.Count("12345678"))
}

func TestSegmentText_ExactConcatenation(t *testing.T) {
	text := "  Hello world.  Next\nline\n\nNew paragraph \"quoted.\" end"
	segs := segmentText(text)

	joined := ""
	for _, s := range segs {
		joined += s.text
	}
	assert.Equal(t, text, joined)

	priorities := make([]int, len(segs))
	for i, s := range segs {
		priorities[i] = s.priority
	}
	assert.Equal(t, []int{
		cutWord,      // "  Hello "
		cutSentence,  // "world.  "
		cutSentence,  // "Next\n"
		cutParagraph, // "line\n\n"
		cutWord,      // "New "
		cutWord,      // "paragraph "
		cutSentence,  // "\"quoted.\" "
		cutWord,      // "end"
	}, priorities)
}
