package scheduler

import (
	"context"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TaskFunc is the work a task performs. The context is cancelled when the
// task is cancelled or the scheduler is released.
type TaskFunc func(ctx context.Context, args ...any) error

// Task is a snapshot of a submitted task.
type Task struct {
	ID          string
	Type        string
	TargetID    string
	Status      Status
	Error       string
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

type task struct {
	Task
	seq             uint64
	fn              TaskFunc
	args            []any
	ctx             context.Context
	cancel          context.CancelFunc
	cancelRequested bool
}
