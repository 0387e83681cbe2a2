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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/embedding"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/scheduler"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/files"
)

// Task types submitted to the scheduler.
const (
	TaskProcessSource   = "process_source"
	TaskSummarizeSource = "summarize_source"
)

// Extensions given to content that does not arrive as a file.
const (
	TextExtension     = "txt"
	LinkExtension     = "link"
	ResearchExtension = "research"
)

// Dispatcher registers sources and schedules their processing.
type Dispatcher struct {
	sources    storage.SourceRepository
	layout     *files.Layout
	registry   *extract.Registry
	pipeline   *embedding.Pipeline
	scheduler  *scheduler.Scheduler
	summarizer ai.Summarizer

	locksMu sync.Mutex
	locks   map[string]*sourceLock

	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithSummarizer enables a summary task after a source becomes ready.
func WithSummarizer(s ai.Summarizer) Option {
	return func(d *Dispatcher) error {
		d.summarizer = s
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher. The scheduler is shared, not owned:
// releasing it is up to the caller.
func NewDispatcher(
	sources storage.SourceRepository,
	layout *files.Layout,
	registry *extract.Registry,
	pipeline *embedding.Pipeline,
	sched *scheduler.Scheduler,
	opts ...Option,
) (*Dispatcher, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if layout == nil {
		return nil, ErrLayoutRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if sched == nil {
		return nil, ErrSchedulerRequired
	}

	d := &Dispatcher{
		sources:   sources,
		layout:    layout,
		registry:  registry,
		pipeline:  pipeline,
		scheduler: sched,
		locks:     make(map[string]*sourceLock),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d, nil
}

// AddSource stores an uploaded file and schedules it for processing.
// The extension decides the processor; unknown extensions are rejected
// before anything is written.
func (d *Dispatcher) AddSource(ctx context.Context, projectID, name, ext string, content io.Reader, meta map[string]string) (*core.Source, error) {
	ext = core.NormalizeExtension(ext)
	if _, err := d.registry.Lookup(ext); err != nil {
		return nil, err
	}
	return d.add(ctx, projectID, name, ext, categoryFor(ext), content, meta)
}

// AddText registers pasted text as a source.
func (d *Dispatcher) AddText(ctx context.Context, projectID, name, text string, meta map[string]string) (*core.Source, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return d.add(ctx, projectID, name, TextExtension, core.CategoryText, strings.NewReader(text), meta)
}

// AddLink registers a web page or video link. The URL is validated here;
// fetching happens during processing.
func (d *Dispatcher) AddLink(ctx context.Context, projectID, rawURL string, meta map[string]string) (*core.Source, error) {
	u, err := extract.ParseLink(rawURL)
	if err != nil {
		return nil, err
	}
	link := u.String()
	meta = withMeta(meta, "url", link)
	return d.add(ctx, projectID, link, LinkExtension, core.CategoryLink, strings.NewReader(link), meta)
}

// AddResearch registers text produced by a research agent for query.
func (d *Dispatcher) AddResearch(ctx context.Context, projectID, name, query, text string, meta map[string]string) (*core.Source, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if strings.TrimSpace(query) != "" {
		meta = withMeta(meta, "query", strings.TrimSpace(query))
	}
	content := extract.FormatResearch(query, text)
	return d.add(ctx, projectID, name, ResearchExtension, core.CategoryResearch, strings.NewReader(content), meta)
}

func (d *Dispatcher) add(ctx context.Context, projectID, name, ext string, category core.SourceCategory, content io.Reader, meta map[string]string) (*core.Source, error) {
	if err := core.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrEmptySourceName
	}

	id := uuid.NewString()
	size, err := d.layout.WriteRaw(projectID, id, ext, content)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	src, err := d.sources.Add(ctx, &core.Source{
		ID:            id,
		ProjectID:     projectID,
		Name:          name,
		Category:      category,
		FileExtension: ext,
		Status:        core.StatusUploaded,
		Active:        true,
		Metadata:      meta,
	})
	if err != nil {
		if rmErr := d.layout.DeleteRaw(projectID, id, ext); rmErr != nil {
			d.logger.Warn("failed to remove orphaned upload", "project", projectID, "source", id, "err", rmErr)
		}
		return nil, err
	}

	d.logger.Info("source added",
		"project", projectID,
		"source", id,
		"name", name,
		"ext", ext,
		"bytes", size)
	d.Enqueue(projectID, id)
	return src, nil
}

// Enqueue schedules processing for a source. It returns the task id, or ""
// when a task for the source is already pending or running.
func (d *Dispatcher) Enqueue(projectID, sourceID string) string {
	return d.scheduler.Submit(TaskProcessSource, taskTarget(projectID, sourceID), d.processTask, projectID, sourceID)
}

func (d *Dispatcher) processTask(ctx context.Context, args ...any) error {
	projectID, sourceID, err := taskArgs(args)
	if err != nil {
		return err
	}
	return d.ProcessSource(ctx, projectID, sourceID)
}

// Retry discards the output of a failed or waiting source and schedules it
// again. Only sources in uploaded or error may be retried.
func (d *Dispatcher) Retry(ctx context.Context, projectID, sourceID string) (string, error) {
	unlock := d.lock(projectID, sourceID)
	src, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		unlock()
		return "", err
	}
	if !core.CanRetry(src.Status) {
		unlock()
		return "", fmt.Errorf("%w: %s", ErrCannotRetry, src.Status)
	}
	d.discardOutput(ctx, projectID, sourceID)
	unlock()

	taskID := d.Enqueue(projectID, sourceID)
	d.logger.Info("source retried", "project", projectID, "source", sourceID, "task", taskID)
	return taskID, nil
}

// Cancel stops any task working on the source, discards its output and
// returns it to uploaded. Ready and failed sources cannot be cancelled.
func (d *Dispatcher) Cancel(ctx context.Context, projectID, sourceID string) error {
	src, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		return err
	}
	if !core.CanCancel(src.Status) {
		return fmt.Errorf("%w: %s", ErrCannotCancel, src.Status)
	}

	// Signal the running task before taking the lock it may be holding.
	cancelled := d.scheduler.CancelByTarget(taskTarget(projectID, sourceID))

	unlock := d.lock(projectID, sourceID)
	defer unlock()

	src, err = d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		return err
	}
	if !core.CanCancel(src.Status) {
		return fmt.Errorf("%w: %s", ErrCannotCancel, src.Status)
	}
	if src.Status != core.StatusUploaded {
		_, err = d.sources.Transition(ctx, projectID, sourceID, storage.AnyAttempt, core.StatusUploaded, func(s *core.Source) error {
			s.ProcessingInfo.Error = ""
			s.EmbeddingInfo = nil
			return nil
		})
		if err != nil {
			return fmt.Errorf("resetting source: %w", err)
		}
	}
	d.discardOutput(ctx, projectID, sourceID)

	d.logger.Info("source cancelled",
		"project", projectID,
		"source", sourceID,
		"was", src.Status,
		"tasks", cancelled)
	return nil
}

// DeleteSource cancels outstanding work and removes the source with all of
// its files and vectors. Cleanup failures are logged; only failing to remove
// the source itself is returned.
func (d *Dispatcher) DeleteSource(ctx context.Context, projectID, sourceID string) error {
	src, err := d.sources.Get(ctx, projectID, sourceID)
	if err != nil {
		return err
	}
	d.scheduler.CancelByTarget(taskTarget(projectID, sourceID))
	d.scheduler.CancelByTarget(summaryTarget(projectID, sourceID))

	unlock := d.lock(projectID, sourceID)
	defer unlock()

	logger := d.logger.With("project", projectID, "source", sourceID)
	d.discardOutput(ctx, projectID, sourceID)
	if err := d.layout.DeleteRaw(projectID, sourceID, src.FileExtension); err != nil {
		logger.Error("failed to delete upload", "err", err)
	}
	if err := d.sources.Remove(ctx, projectID, sourceID); err != nil {
		return err
	}
	logger.Info("source deleted", "name", src.Name)
	return nil
}

// SetActive toggles whether a source takes part in a project's retrieval.
func (d *Dispatcher) SetActive(ctx context.Context, projectID, sourceID string, active bool) (*core.Source, error) {
	return d.sources.Update(ctx, projectID, sourceID, func(s *core.Source) error {
		s.Active = active
		return nil
	})
}

// Resume returns sources interrupted mid-flight, for example by a crash,
// to uploaded and schedules every waiting source of the project. It
// returns the number of tasks submitted.
func (d *Dispatcher) Resume(ctx context.Context, projectID string) (int, error) {
	sources, err := d.sources.List(ctx, projectID)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, src := range sources {
		target := taskTarget(projectID, src.ID)
		if len(d.activeTasks(target)) > 0 {
			continue
		}
		switch src.Status {
		case core.StatusProcessing, core.StatusEmbedding:
			if err := d.Cancel(ctx, projectID, src.ID); err != nil {
				d.logger.Warn("failed to reset interrupted source", "project", projectID, "source", src.ID, "err", err)
				continue
			}
		case core.StatusUploaded:
		default:
			continue
		}
		if d.Enqueue(projectID, src.ID) != "" {
			submitted++
		}
	}
	if submitted > 0 {
		d.logger.Info("resumed sources", "project", projectID, "count", submitted)
	}
	return submitted, nil
}

// Tasks returns the retained processing and summary tasks of a source,
// oldest first.
func (d *Dispatcher) Tasks(projectID, sourceID string) []scheduler.Task {
	tasks := d.scheduler.TasksForTarget(taskTarget(projectID, sourceID))
	tasks = append(tasks, d.scheduler.TasksForTarget(summaryTarget(projectID, sourceID))...)
	slices.SortStableFunc(tasks, func(a, b scheduler.Task) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return tasks
}

func (d *Dispatcher) activeTasks(target string) []scheduler.Task {
	tasks := d.scheduler.TasksForTarget(target)
	return slices.DeleteFunc(tasks, func(t scheduler.Task) bool {
		return t.Status.Terminal()
	})
}

// discardOutput removes processed text, chunk files and vectors.
// Callers hold the source lock.
func (d *Dispatcher) discardOutput(ctx context.Context, projectID, sourceID string) {
	logger := d.logger.With("project", projectID, "source", sourceID)
	if err := d.layout.DeleteProcessed(projectID, sourceID); err != nil {
		logger.Error("failed to delete processed text", "err", err)
	}
	// DeleteEmbeddings logs its own failures.
	_ = d.pipeline.DeleteEmbeddings(ctx, projectID, sourceID)
}

// sourceLock is a per-source mutex with the number of holders and waiters.
type sourceLock struct {
	mu   sync.Mutex
	refs int
}

// lock serialises file output and cleanup for one source. Entries are
// dropped once nobody holds or waits for them.
func (d *Dispatcher) lock(projectID, sourceID string) func() {
	key := taskTarget(projectID, sourceID)
	d.locksMu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &sourceLock{}
		d.locks[key] = l
	}
	l.refs++
	d.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, key)
		}
		d.locksMu.Unlock()
	}
}

func taskTarget(projectID, sourceID string) string {
	return projectID + "/" + sourceID
}

func summaryTarget(projectID, sourceID string) string {
	return taskTarget(projectID, sourceID) + "/summary"
}

func taskArgs(args []any) (projectID, sourceID string, err error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("expected project and source ids, got %d args", len(args))
	}
	projectID, ok1 := args[0].(string)
	sourceID, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return "", "", errors.New("task arguments must be strings")
	}
	return projectID, sourceID, nil
}

func categoryFor(ext string) core.SourceCategory {
	switch {
	case slices.Contains(extract.ImageExtensions, ext):
		return core.CategoryImage
	case slices.Contains(extract.AudioExtensions, ext):
		return core.CategoryAudio
	case ext == LinkExtension:
		return core.CategoryLink
	case ext == ResearchExtension:
		return core.CategoryResearch
	default:
		return core.CategoryDocument
	}
}

func withMeta(meta map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = value
	return out
}
