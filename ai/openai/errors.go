package openai

import "errors"

var (
	// ErrEmptyInput indicates there was nothing to send to the model.
	ErrEmptyInput = errors.New("empty input")

	// ErrNoChoices indicates the model returned no completion.
	ErrNoChoices = errors.New("model returned no choices")

	// ErrServiceDisabled indicates the provider was configured without the service.
	ErrServiceDisabled = errors.New("service not configured")
)
