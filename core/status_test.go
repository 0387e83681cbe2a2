package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []SourceStatus{StatusUploaded, StatusProcessing, StatusEmbedding, StatusReady, StatusError}

func TestCanTransition_Table(t *testing.T) {
	legal := map[[2]SourceStatus]bool{
		{StatusUploaded, StatusProcessing}:   true,
		{StatusProcessing, StatusEmbedding}:  true,
		{StatusEmbedding, StatusReady}:       true,
		{StatusProcessing, StatusError}:      true,
		{StatusEmbedding, StatusError}:       true,
		{StatusError, StatusProcessing}:      true,
		{StatusProcessing, StatusUploaded}:   true,
		{StatusEmbedding, StatusUploaded}:    true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]SourceStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s→%s", from, to)
			if want {
				assert.NoError(t, ValidateTransition(from, to))
			} else {
				assert.ErrorIs(t, ValidateTransition(from, to), ErrInvalidTransition)
			}
		}
	}
}

func TestReadyOnlyReachableThroughProcessing(t *testing.T) {
	// Every path into ready must pass through processing: walk predecessors.
	var reaches func(target SourceStatus, seen map[SourceStatus]bool) bool
	reaches = func(target SourceStatus, seen map[SourceStatus]bool) bool {
		for _, from := range allStatuses {
			if from == StatusProcessing || seen[from] || !CanTransition(from, target) {
				continue
			}
			if from == StatusUploaded {
				return true
			}
			seen[from] = true
			if reaches(from, seen) {
				return true
			}
		}
		return false
	}
	assert.False(t, reaches(StatusReady, map[SourceStatus]bool{}),
		"ready must not be reachable from uploaded without processing")
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	assert.ErrorIs(t, ValidateTransition("bogus", StatusReady), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateTransition(StatusUploaded, "bogus"), ErrInvalidTransition)
}

func TestCanRetryAndCancel(t *testing.T) {
	assert.True(t, CanRetry(StatusUploaded))
	assert.True(t, CanRetry(StatusError))
	assert.False(t, CanRetry(StatusProcessing))
	assert.False(t, CanRetry(StatusReady))

	assert.True(t, CanCancel(StatusUploaded))
	assert.True(t, CanCancel(StatusProcessing))
	assert.True(t, CanCancel(StatusEmbedding))
	assert.False(t, CanCancel(StatusReady))
	assert.False(t, CanCancel(StatusError))
}
