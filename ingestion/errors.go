package ingestion

import "errors"

var (
	// ErrSourceRepositoryRequired is returned when a source repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source repository required")

	// ErrLayoutRequired is returned when a file layout is not provided.
	ErrLayoutRequired = errors.New("file layout required")

	// ErrRegistryRequired is returned when a processor registry is not provided.
	ErrRegistryRequired = errors.New("processor registry required")

	// ErrPipelineRequired is returned when an embedding pipeline is not provided.
	ErrPipelineRequired = errors.New("embedding pipeline required")

	// ErrSchedulerRequired is returned when a task scheduler is not provided.
	ErrSchedulerRequired = errors.New("task scheduler required")

	// ErrCannotRetry is returned when Retry is called outside uploaded or error.
	ErrCannotRetry = errors.New("source cannot be retried in its current status")

	// ErrCannotCancel is returned when Cancel is called on a ready or failed source.
	ErrCannotCancel = errors.New("source cannot be cancelled in its current status")

	// ErrEmptyText is returned when pasted or research text is blank.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrNotReady is returned when a summary is requested for a source that
	// has not finished processing.
	ErrNotReady = errors.New("source is not ready")

	// ErrNoDocument is returned when a processor reports success without a document.
	ErrNoDocument = errors.New("processor returned no document")

	// ErrProcessingPanicked is returned when a processor or the embedding
	// stage panics.
	ErrProcessingPanicked = errors.New("processing panicked")
)
