// Package scheduler runs rule pipelines across a bounded worker pool. One
// task per rule, one outcome per task; a failing rule never takes down its
// neighbors, and cancellation drains the pool without abandoning bookkeeping.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// Status classifies how a task ended
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the per-rule execution record. Every scheduled task produces
// exactly one, whatever happened to it.
type Outcome struct {
	RuleID   string
	Status   Status
	Outputs  []string
	Err      error
	Duration time.Duration
}

// Task binds a resolved rule to its pipelines and the chronological file
// groups the pipelines run over. An empty Groups slice runs the pipelines
// once with no seeded files, leaving discovery to the load step.
type Task struct {
	Rule      *rules.Rule
	Pipelines []*pipeline.Pipeline
	Groups    [][]string
}

// Scheduler executes tasks concurrently up to a worker limit
type Scheduler struct {
	workers  int
	parallel bool
	logger   zerolog.Logger
}

// New creates a scheduler. Workers below one are clamped to one; parallel
// false forces strictly sequential execution regardless of workers.
func New(workers int, parallel bool) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		workers:  workers,
		parallel: parallel,
		logger:   logging.GetLogger("scheduler"),
	}
}

// Run executes all tasks and returns one outcome per task, in task order.
// Cancellation marks not-yet-started and in-flight tasks as cancelled; it
// never drops an outcome.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	workers := s.workers
	if !s.parallel {
		workers = 1
	}
	s.logger.Info().
		Int("tasks", len(tasks)).
		Int("workers", workers).
		Msg("Starting execution")

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = Outcome{
					RuleID: tasks[i].Rule.ID(),
					Status: StatusCancelled,
					Err:    errors.Wrap(ctx.Err(), errors.ErrCancelled, "task not started"),
				}
				return
			}
			outcomes[i] = s.runTask(ctx, tasks[i])
		}(i)
	}
	wg.Wait()
	return outcomes
}

func (s *Scheduler) runTask(ctx context.Context, task Task) Outcome {
	start := time.Now()
	outcome := Outcome{RuleID: task.Rule.ID()}

	groups := task.Groups
	if len(groups) == 0 {
		groups = [][]string{nil}
	}

	for _, group := range groups {
		data := dataset.New()
		data.SourceFiles = group
		result, err := pipeline.RunAll(ctx, task.Pipelines, data, task.Rule)
		if err != nil {
			outcome.Err = err
			if ctx.Err() != nil || errors.IsErrorCode(err, errors.ErrCancelled) {
				outcome.Status = StatusCancelled
			} else {
				outcome.Status = StatusFailed
			}
			outcome.Duration = time.Since(start)
			s.logger.Error().
				Err(err).
				Str("rule", outcome.RuleID).
				Str("status", string(outcome.Status)).
				Msg("Task did not complete")
			return outcome
		}
		outcome.Outputs = append(outcome.Outputs, result.SavedTo...)
	}

	outcome.Status = StatusSuccess
	outcome.Duration = time.Since(start)
	s.logger.Info().
		Str("rule", outcome.RuleID).
		Dur("duration", outcome.Duration).
		Int("outputs", len(outcome.Outputs)).
		Msg("Task completed")
	return outcome
}

// Succeeded reports whether every outcome completed successfully
func Succeeded(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status != StatusSuccess {
			return false
		}
	}
	return true
}
