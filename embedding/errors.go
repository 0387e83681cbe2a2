package embedding

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrBadVector indicates the embedder returned an unusable vector.
	ErrBadVector = errors.New("invalid embedding vector")

	// ErrCountMismatch indicates the embedder returned a different number of
	// vectors than texts it was given.
	ErrCountMismatch = errors.New("embedding count mismatch")
)
