package scheduler

import "errors"

var (
	// ErrTaskPanicked is recorded when a task function panics.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrSchedulerClosed is recorded for tasks dropped by Release.
	ErrSchedulerClosed = errors.New("scheduler closed")
)
