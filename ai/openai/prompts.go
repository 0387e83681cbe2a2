package openai

import "fmt"

const summaryResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "summary": {
      "type": "string"
    },
    "key_topics": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "maxItems": 8
    }
  },
  "required": ["summary", "key_topics"],
  "additionalProperties": false
}`

const summaryPromptTemplate = `You summarize documents for a research knowledge base.

Read the document the user sends and respond with a single JSON object
matching this schema:

%s

Rules:
- "summary" is 2 to 4 plain sentences describing what the document covers.
- "key_topics" lists at most 8 short lowercase topics, most important first.
- Do not invent facts that are not in the document.
- Respond with JSON only. No markdown, no commentary.

Example:
{
  "summary": "A field guide to Northern European birds of prey, with identification notes and range maps.",
  "key_topics": ["birds of prey", "identification", "northern europe"]
}`

const visionPrompt = `Describe this image for a searchable knowledge base.

First write one paragraph describing what the image shows. Then, if the image
contains legible text, add a line "Text:" followed by that text transcribed
exactly, preserving line breaks. If there is no text, omit the "Text:" line.`

// buildSummaryPrompt creates the system prompt with the response schema embedded.
func buildSummaryPrompt() string {
	return fmt.Sprintf(summaryPromptTemplate, summaryResponseSchema)
}
