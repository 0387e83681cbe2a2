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

package openai

import "strings"

// cleanResponse strips markdown code fences that some models wrap JSON in,
// then repairs unquoted keys.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return repairJSON(strings.TrimSpace(s))
}

// repairJSON fixes keys that are missing their opening quote, a common
// failure of small local models: `{summary": "x"}` becomes `{"summary": "x"}`.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	inString := false
	for i := 0; i < len(in); i++ {
		ch := in[i]
		out = append(out, ch)

		switch {
		case ch == '"' && (i == 0 || in[i-1] != '\\'):
			inString = !inString
			continue
		case inString || (ch != '{' && ch != ','):
			continue
		}

		// After { or , outside a string: copy whitespace, then look for a bare key.
		j := i + 1
		for j < len(in) && isSpace(in[j]) {
			out = append(out, in[j])
			j++
		}
		k := j
		for k < len(in) && (isLetter(in[k]) || in[k] == '_') {
			k++
		}
		if k > j && k+1 < len(in) && in[k] == '"' && in[k+1] == ':' {
			out = append(out, '"')
			out = append(out, in[j:k]...)
			// Closing quote written here; the input's is skipped so it
			// doesn't toggle inString.
			out = append(out, '"')
			i = k
			continue
		}
		i = j - 1
	}

	return string(out)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
