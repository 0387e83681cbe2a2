package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const maxParseAttempts = 3

// Summarizer implements ai.Summarizer using OpenAI-compatible chat APIs.
type Summarizer struct {
	client   llms.Model
	model    string
	maxChars int
	logger   *slog.Logger
}

// summaryResponse is the JSON shape the model is asked to produce.
type summaryResponse struct {
	Summary   string   `json:"summary"`
	KeyTopics []string `json:"key_topics"`
}

// newSummarizer is an internal constructor that returns the concrete type.
func newSummarizer(config *ai.Config) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.SummariesEnabled() {
		return nil, ErrServiceDisabled
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		client:   client,
		model:    config.ChatModel,
		maxChars: config.SummaryMaxChars,
		logger:   slog.Default().With("component", "openai-summarizer"),
	}, nil
}

// NewSummarizer creates a new summarizer using the provided configuration.
//
// Returns ai.Summarizer interface to enforce abstraction.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config)
}

// Summarize asks the chat model for a JSON summary of text. Malformed JSON
// is repaired where possible and the request retried up to three times.
func (s *Summarizer) Summarize(ctx context.Context, text string) (*ai.Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	text = truncateRunes(text, s.maxChars)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSummaryPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	var result summaryResponse
	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			s.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}
		if len(response.Choices) < 1 {
			return nil, ErrNoChoices
		}

		responseText := cleanResponse(response.Choices[0].Content)
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			s.logger.Warn("error parsing summary response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		s.logger.Error("failed to parse summary response after retries", "err", lastErr)
		return nil, lastErr
	}

	topics := make([]string, 0, len(result.KeyTopics))
	for _, topic := range result.KeyTopics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}

	s.logger.Debug("generated summary", "chars", len(text), "topics", len(topics))
	return &ai.Summary{
		Summary:   strings.TrimSpace(result.Summary),
		KeyTopics: topics,
		Model:     s.model,
	}, nil
}
