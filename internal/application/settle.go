package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one fan-out task.
type Outcome struct {
	Task string
	Err  error
}

// OK reports whether the task succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Report is the settled result of a fan-out: one Outcome per task, whether it
// succeeded or not. A failed task never prevents its siblings from running.
type Report struct {
	Outcomes []Outcome
}

// Failed returns the outcomes of failed tasks.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded returns the number of tasks that succeeded.
func (r Report) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// Outcome returns the outcome recorded for task.
func (r Report) Outcome(task string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Task == task {
			return o, true
		}
	}
	return Outcome{}, false
}

// Err joins the errors of all failed tasks, or returns nil if every task succeeded.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.Task, o.Err))
	}
	return errors.Join(errs...)
}

// settler collects outcomes from concurrent tasks.
type settler struct {
	mu       sync.Mutex
	outcomes []Outcome
	metrics  Metrics
}

func newSettler(metrics Metrics) *settler {
	return &settler{metrics: metricsOrNop(metrics)}
}

func (s *settler) record(task string, err error) {
	s.metrics.BackfillTask(task, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, Outcome{Task: task, Err: err})
}

// report returns the outcomes sorted by task name.
func (s *settler) report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]Outcome, len(s.outcomes))
	copy(outcomes, s.outcomes)
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Task < outcomes[j].Task })

	return Report{Outcomes: outcomes}
}

// task is one independently fault-contained unit of a fan-out.
type task struct {
	name string
	run  func(ctx context.Context) error
}

// settle runs tasks concurrently, at most limit at a time, and records every
// outcome. A task error or panic is recorded and never cancels its siblings.
// Each call uses its own group, so a task may itself call settle.
func settle(ctx context.Context, limit int, s *settler, tasks []task) {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, t := range tasks {
		g.Go(func() error {
			s.record(t.name, runContained(ctx, t.run))
			return nil
		})
	}

	_ = g.Wait()
}

// runContained runs fn and converts a panic into an error.
func runContained(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
