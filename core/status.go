package core

import "fmt"

// SourceStatus is the lifecycle state of a source.
type SourceStatus string

const (
	// StatusUploaded means the raw content is stored and awaiting processing.
	StatusUploaded SourceStatus = "uploaded"
	// StatusProcessing means a processor is extracting text.
	StatusProcessing SourceStatus = "processing"
	// StatusEmbedding means the processed text is being chunked and embedded.
	StatusEmbedding SourceStatus = "embedding"
	// StatusReady means the source is fully processed and searchable.
	StatusReady SourceStatus = "ready"
	// StatusError means the last processing attempt failed.
	StatusError SourceStatus = "error"
)

// transitions is the single table of legal status changes.
var transitions = map[SourceStatus][]SourceStatus{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusEmbedding, StatusError, StatusUploaded},
	StatusEmbedding:  {StatusReady, StatusError, StatusUploaded},
	StatusReady:      nil,
	StatusError:      {StatusProcessing},
}

// Valid reports whether s is a known status.
func (s SourceStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to SourceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition if from→to is not legal.
func ValidateTransition(from, to SourceStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown status %q→%q", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s→%s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanRetry reports whether a source in status s may be retried.
func CanRetry(s SourceStatus) bool {
	return s == StatusUploaded || s == StatusError
}

// CanCancel reports whether a source in status s may be cancelled.
func CanCancel(s SourceStatus) bool {
	return s == StatusUploaded || s == StatusProcessing || s == StatusEmbedding
}
