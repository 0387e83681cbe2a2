package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ImageExtractor implements ai.ImageExtractor with a multimodal chat model.
type ImageExtractor struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

func newImageExtractor(config *ai.Config) (*ImageExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.VisionEnabled() {
		return nil, ErrServiceDisabled
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.VisionModel),
	)
	if err != nil {
		return nil, err
	}

	return &ImageExtractor{
		client: client,
		model:  config.VisionModel,
		logger: slog.Default().With("component", "openai-vision"),
	}, nil
}

// NewImageExtractor creates a new image extractor using the provided configuration.
func NewImageExtractor(config *ai.Config) (ai.ImageExtractor, error) {
	return newImageExtractor(config)
}

// ExtractImage sends the image inline with the description prompt and
// returns the model's answer.
func (e *ImageExtractor) ExtractImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyInput
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(visionPrompt),
				llms.BinaryPart(mimeType, image),
			},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		e.logger.Error("failed to describe image", "mime", mimeType, "bytes", len(image), "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ErrNoChoices
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	e.logger.Debug("described image", "mime", mimeType, "chars", len(text))
	return text, nil
}

// Model returns the vision model identifier.
func (e *ImageExtractor) Model() string {
	return e.model
}
