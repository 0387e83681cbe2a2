package search

import "strings"

// Stop words to filter out when checking for verbatim matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "which": true, "how": true, "does": true,
}

// normalizeQuery collapses whitespace so equivalent queries share a cache entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// contentWords splits text into lowercase words with punctuation trimmed and
// stop words removed.
func contentWords(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// containsAllQueryWords reports whether every content word of the query
// appears in text.
func containsAllQueryWords(text, query string) bool {
	queryWords := contentWords(query)
	if len(queryWords) == 0 {
		return false
	}
	present := make(map[string]bool)
	for _, word := range contentWords(text) {
		present[word] = true
	}
	for _, word := range queryWords {
		if !present[word] {
			return false
		}
	}
	return true
}
