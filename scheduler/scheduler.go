// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const defaultRetention = 1000

// Scheduler runs tasks on an ants worker pool fed by an unbounded FIFO queue.
type Scheduler struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*task
	tasks     map[string]*task // every task still retained, by id
	live      map[string]*task // non-terminal tasks, by id
	active    map[string]*task // non-cancelled pending/running task, by target
	finished  []string         // terminal task ids, oldest first
	retention int
	seq       uint64

	outstanding int
	idle        chan struct{}

	poolSize int
	pool     *ants.Pool
	closed   bool
	done     chan struct{}
	logger   *slog.Logger
}

// antsLoggerAdapter adapts slog.Logger to the ants.Logger interface.
type antsLoggerAdapter struct {
	logger *slog.Logger
}

var _ ants.Logger = (*antsLoggerAdapter)(nil)

func (al *antsLoggerAdapter) Printf(format string, args ...any) {
	al.logger.Warn(fmt.Sprintf(format, args...))
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithPoolSize sets the number of concurrent workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Scheduler) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithRetention sets how many finished tasks are kept for inspection.
// Default is 1000.
func WithRetention(n int) Option {
	return func(s *Scheduler) error {
		if n < 0 {
			return fmt.Errorf("retention must not be negative, got %d", n)
		}
		s.retention = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a scheduler and starts its dispatch loop.
// Call Release when done.
func New(opts ...Option) (*Scheduler, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	s := &Scheduler{
		tasks:     make(map[string]*task),
		live:      make(map[string]*task),
		active:    make(map[string]*task),
		retention: defaultRetention,
		poolSize:  poolSize,
		done:      make(chan struct{}),
		logger:    slog.Default(),
	}
	s.cond = sync.NewCond(&s.mu)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "scheduler")

	pool, err := ants.NewPool(s.poolSize, ants.WithLogger(&antsLoggerAdapter{logger: s.logger}))
	if err != nil {
		return nil, err
	}
	s.pool = pool

	go s.dispatch()
	return s, nil
}

// Submit queues fn to run with args. It never blocks.
//
// It returns the new task id, or "" if a pending or running task that has
// not been cancelled already exists for targetID, or if the scheduler has
// been released. An empty targetID disables deduplication.
func (s *Scheduler) Submit(taskType, targetID string, fn TaskFunc, args ...any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("submit after release", "type", taskType, "target", targetID)
		return ""
	}
	if targetID != "" {
		if existing, ok := s.active[targetID]; ok {
			s.logger.Debug("task already scheduled", "type", taskType, "target", targetID, "existing", existing.ID)
			return ""
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.seq++
	t := &task{
		Task: Task{
			ID:          uuid.NewString(),
			Type:        taskType,
			TargetID:    targetID,
			Status:      StatusPending,
			SubmittedAt: time.Now().UTC(),
		},
		seq:    s.seq,
		fn:     fn,
		args:   args,
		ctx:    ctx,
		cancel: cancel,
	}

	s.tasks[t.ID] = t
	s.live[t.ID] = t
	if targetID != "" {
		s.active[targetID] = t
	}
	if s.outstanding == 0 {
		s.idle = make(chan struct{})
	}
	s.outstanding++
	s.queue = append(s.queue, t)
	s.cond.Signal()

	s.logger.Debug("task submitted", "id", t.ID, "type", taskType, "target", targetID)
	return t.ID
}

// CancelByTarget cancels every pending or running task for targetID and
// returns how many were marked. Pending tasks become cancelled at once;
// running tasks become cancelled when their function returns.
func (s *Scheduler) CancelByTarget(targetID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.live {
		if t.TargetID != targetID || t.cancelRequested {
			continue
		}
		count++
		switch t.Status {
		case StatusPending:
			s.finishLocked(t, StatusCancelled, nil)
		case StatusRunning:
			t.cancelRequested = true
			t.cancel()
			if s.active[targetID] == t {
				delete(s.active, targetID)
			}
		}
	}
	if count > 0 {
		s.logger.Info("tasks cancelled", "target", targetID, "count", count)
	}
	return count
}

// Get returns a snapshot of the task with the given id.
func (s *Scheduler) Get(taskID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return t.Task, true
}

// TasksForTarget returns snapshots of all retained tasks for targetID in
// submission order.
func (s *Scheduler) TasksForTarget(targetID string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*task
	for _, t := range s.tasks {
		if t.TargetID == targetID {
			matched = append(matched, t)
		}
	}
	slices.SortFunc(matched, func(a, b *task) int {
		return int(a.seq) - int(b.seq)
	})

	out := make([]Task, len(matched))
	for i, t := range matched {
		out[i] = t.Task
	}
	return out
}

// Outstanding returns the number of tasks not yet in a terminal state.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}

// Wait blocks until every submitted task has reached a terminal state,
// including tasks submitted by running tasks, or until ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.outstanding == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release cancels all outstanding work, stops the dispatch loop and
// releases the worker pool. The scheduler must not be used afterwards.
func (s *Scheduler) Release() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, t := range s.live {
		switch t.Status {
		case StatusPending:
			s.finishLocked(t, StatusCancelled, ErrSchedulerClosed)
		case StatusRunning:
			t.cancelRequested = true
			t.cancel()
		}
	}
	s.active = make(map[string]*task)
	s.cond.Broadcast()
	s.mu.Unlock()

	<-s.done
	s.pool.Release()
}

// dispatch moves queued tasks onto the pool in FIFO order. Pool submission
// blocks while every worker is busy, which keeps the queue in order without
// ever blocking callers of Submit.
func (s *Scheduler) dispatch() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.queue = nil
			s.mu.Unlock()
			return
		}
		t := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		skip := t.Status != StatusPending
		s.mu.Unlock()

		if skip {
			continue
		}
		if err := s.pool.Submit(func() { s.run(t) }); err != nil {
			s.mu.Lock()
			if t.Status == StatusPending {
				s.finishLocked(t, StatusFailed, err)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) run(t *task) {
	s.mu.Lock()
	if t.Status != StatusPending {
		// Cancelled between dequeue and pickup.
		s.mu.Unlock()
		return
	}
	t.Status = StatusRunning
	t.StartedAt = time.Now().UTC()
	s.mu.Unlock()

	logger := s.logger.With("id", t.ID, "type", t.Type, "target", t.TargetID)
	logger.Debug("task started")

	err := s.call(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case t.cancelRequested:
		s.finishLocked(t, StatusCancelled, nil)
		logger.Info("task cancelled")
	case err != nil:
		s.finishLocked(t, StatusFailed, err)
		logger.Error("task failed", "err", err)
	default:
		s.finishLocked(t, StatusCompleted, nil)
		logger.Debug("task completed", "duration", t.FinishedAt.Sub(t.StartedAt))
	}
}

func (s *Scheduler) call(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return t.fn(t.ctx, t.args...)
}

// finishLocked records the terminal state of t. Callers hold s.mu.
func (s *Scheduler) finishLocked(t *task, status Status, err error) {
	if t.Status.Terminal() {
		return
	}
	t.Status = status
	t.FinishedAt = time.Now().UTC()
	if err != nil {
		t.Error = err.Error()
	}
	t.cancel()

	delete(s.live, t.ID)
	if s.active[t.TargetID] == t {
		delete(s.active, t.TargetID)
	}
	s.outstanding--
	if s.outstanding == 0 {
		close(s.idle)
	}

	s.finished = append(s.finished, t.ID)
	for len(s.finished) > s.retention {
		delete(s.tasks, s.finished[0])
		s.finished = s.finished[1:]
	}
}
