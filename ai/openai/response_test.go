package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"summary": "x"}`, want: `{"summary": "x"}`},
		{name: "json fence", in: "```json\n{\"summary\": \"x\"}\n```", want: `{"summary": "x"}`},
		{name: "bare fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "missing opening quote", in: `{summary": "x"}`, want: `{"summary": "x"}`},
		{name: "missing quote after comma", in: `{"summary": "x", key_topics": []}`, want: `{"summary": "x", "key_topics": []}`},
		{name: "commas inside strings untouched", in: `{"summary": "a, b": "c"}`, want: `{"summary": "a, b": "c"}`},
		{name: "literal after comma", in: `[1, true]`, want: `[1, true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanResponse(tt.in))
		})
	}
}

func TestRepairJSON_ProducesValidJSON(t *testing.T) {
	repaired := repairJSON(`{summary": "birds", key_topics": ["raptors", "owls"]}`)

	var decoded summaryResponse
	require.NoError(t, json.Unmarshal([]byte(repaired), &decoded))
	assert.Equal(t, "birds", decoded.Summary)
	assert.Equal(t, []string{"raptors", "owls"}, decoded.KeyTopics)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}
