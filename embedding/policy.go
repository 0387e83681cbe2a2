package embedding

import "fmt"

// DefaultMinTokens is the token count below which the default policy leaves
// a source unembedded and served as full content.
const DefaultMinTokens = 1000

// Policy decides whether a source is worth embedding.
type Policy interface {
	// ShouldEmbed returns false and a human-readable reason to skip embedding.
	ShouldEmbed(tokens, chars int) (bool, string)
}

type alwaysEmbed struct{}

func (alwaysEmbed) ShouldEmbed(tokens, chars int) (bool, string) {
	return true, ""
}

// AlwaysEmbed returns a policy that embeds every non-empty source.
func AlwaysEmbed() Policy {
	return alwaysEmbed{}
}

// Threshold embeds a source only when it reaches both minimums.
// A zero minimum is not checked.
type Threshold struct {
	MinTokens int
	MinChars  int
}

// DefaultPolicy returns Threshold{MinTokens: DefaultMinTokens}.
func DefaultPolicy() Policy {
	return Threshold{MinTokens: DefaultMinTokens}
}

// ShouldEmbed implements Policy.
func (t Threshold) ShouldEmbed(tokens, chars int) (bool, string) {
	if t.MinTokens > 0 && tokens < t.MinTokens {
		return false, fmt.Sprintf("below embedding threshold: %d tokens, minimum %d", tokens, t.MinTokens)
	}
	if t.MinChars > 0 && chars < t.MinChars {
		return false, fmt.Sprintf("below embedding threshold: %d characters, minimum %d", chars, t.MinChars)
	}
	return true, ""
}
