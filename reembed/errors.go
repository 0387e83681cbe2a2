package reembed

import "errors"

var (
	// ErrSourceRepositoryRequired is returned when a source repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source repository required")

	// ErrLayoutRequired is returned when a file layout is not provided.
	ErrLayoutRequired = errors.New("file layout required")

	// ErrPipelineRequired is returned when an embedding pipeline is not provided.
	ErrPipelineRequired = errors.New("embedding pipeline required")

	// errNoLongerReady aborts an update for a source that left ready meanwhile.
	errNoLongerReady = errors.New("source is no longer ready")
)
