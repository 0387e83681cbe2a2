package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Boundary priorities for cut points. Higher wins.
const (
	cutHard      = 0 // inside an oversized word
	cutWord      = 1
	cutSentence  = 2
	cutParagraph = 3
)

// segment is a contiguous piece of page text ending at a cut point.
type segment struct {
	text     string
	tokens   int
	priority int // priority of the cut at the end of this segment
}

// segmentText splits text into word units, each carrying its trailing
// whitespace, and tags the cut after each unit with a boundary priority.
// Concatenating the segment texts yields the input exactly.
func segmentText(text string) []segment {
	var segs []segment
	pos := 0
	for pos < len(text) {
		start := pos
		// Leading whitespace only occurs before the first word.
		pos = skip(text, pos, unicode.IsSpace)
		wordEnd := skip(text, pos, func(r rune) bool { return !unicode.IsSpace(r) })
		pos = skip(text, wordEnd, unicode.IsSpace)

		word := text[start:wordEnd]
		gap := text[wordEnd:pos]
		segs = append(segs, segment{
			text:     text[start:pos],
			priority: classify(word, gap),
		})
	}
	return segs
}

func skip(text string, pos int, match func(rune) bool) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !match(r) {
			break
		}
		pos += size
	}
	return pos
}

func classify(word, gap string) int {
	if strings.Count(gap, "\n") >= 2 {
		return cutParagraph
	}
	if strings.Contains(gap, "\n") || endsSentence(word) {
		return cutSentence
	}
	return cutWord
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]}”’`)
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?', ';', ':':
		return true
	}
	return false
}

// splitOversized breaks a segment larger than limit tokens into rune windows
// of roughly goal tokens each. Only the last piece keeps the original cut priority.
func splitOversized(s segment, goal, limit int, tk Tokenizer) []segment {
	if s.tokens <= limit {
		return []segment{s}
	}
	runes := []rune(s.text)
	window := goal * len(runes) / s.tokens
	if window < 1 {
		window = 1
	}

	var out []segment
	for start := 0; start < len(runes); {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		// Shrink until the piece fits the limit under the real tokenizer.
		for end-start > 1 && tk.Count(string(runes[start:end])) > limit {
			end = start + (end-start)/2
		}
		piece := string(runes[start:end])
		out = append(out, segment{text: piece, tokens: tk.Count(piece), priority: cutHard})
		start = end
	}
	out[len(out)-1].priority = s.priority
	return out
}
