package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beevik/etree"

	"3tcapital/ms_einvoice_batch/internal/core/document"
)

// Processor runs the document pipeline over one index range of the burst.
type Processor interface {
	ProcessRange(ctx context.Context, store document.Store, docs []*etree.Element, start, end int) error
}

// StoreSource hands out a store bound to its own connection so parallel
// tasks never share one. The release func must be called when the task
// is done with the store.
type StoreSource interface {
	AcquireStore(ctx context.Context) (document.Store, func(), error)
}

// Result is the outcome of one task.
type Result struct {
	Task Task
	Err  error
}

// Scheduler fans the tasks of a burst out over a bounded worker pool.
// Workers drain a shared job channel; a failing task is recorded but
// does not cancel its siblings, so every document of the burst gets its
// attempt even when one range hits an infrastructure error.
type Scheduler struct {
	workers int
	source  StoreSource
	log     *slog.Logger
}

// NewScheduler creates a scheduler with the given worker bound. A bound
// below one is raised to one.
func NewScheduler(workers int, source StoreSource, log *slog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		workers: workers,
		source:  source,
		log:     log,
	}
}

// Run partitions docs, processes every task on the pool and blocks until
// all tasks finished. The returned error is the first task failure in
// completion order, or ctx's error when the run was cancelled.
func (s *Scheduler) Run(ctx context.Context, proc Processor, docs []*etree.Element) error {
	tasks := Partition(len(docs))
	if len(tasks) == 0 {
		return nil
	}

	workers := s.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobChan := make(chan Task, len(tasks))
	resultChan := make(chan Result, len(tasks))

	for w := 0; w < workers; w++ {
		go s.worker(ctx, w, proc, docs, jobChan, resultChan)
	}

	for _, t := range tasks {
		jobChan <- t
	}
	close(jobChan)

	var firstErr error
	for i := 0; i < len(tasks); i++ {
		res := <-resultChan
		if res.Err != nil {
			s.log.Error("Task failed",
				"start", res.Task.Start, "end", res.Task.End, "error", res.Err)
			if firstErr == nil {
				firstErr = fmt.Errorf("range [%d,%d): %w", res.Task.Start, res.Task.End, res.Err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (s *Scheduler) worker(ctx context.Context, id int, proc Processor, docs []*etree.Element, jobs <-chan Task, results chan<- Result) {
	s.log.Debug("Worker started", "worker", id)
	for task := range jobs {
		results <- Result{Task: task, Err: s.runTask(ctx, proc, docs, task)}
	}
	s.log.Debug("Worker finished", "worker", id)
}

func (s *Scheduler) runTask(ctx context.Context, proc Processor, docs []*etree.Element, task Task) error {
	if task.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	store, release, err := s.source.AcquireStore(ctx)
	if err != nil {
		return fmt.Errorf("acquire store: %w", err)
	}
	defer release()

	return proc.ProcessRange(ctx, store, docs, task.Start, task.End)
}
