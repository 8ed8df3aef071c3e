package async

import (
	"context"
	"errors"
	"time"
)

// Status is the tri-state lifecycle of a pollable task
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// DefaultPollInterval is the tick used when no interval is configured
const DefaultPollInterval = 50 * time.Millisecond

var (
	ErrInProgress = errors.New("task still in progress")
	ErrCancelled  = errors.New("task cancelled")
)

// Task is a unit of work advanced only by its owner calling Update.
// Nothing happens between calls; Cancel aborts the task synchronously.
type Task interface {
	Update()
	Status() Status
	Err() error
	Cancel()
}

// Handle is a Task that produces a typed result once it stops running
type Handle[T any] interface {
	Task
	Result() (T, error)
}

// State stores status and failure reason for task implementations to embed
type State struct {
	status Status
	err    error
}

// Status returns the current status, in-progress for a zero State
func (s *State) Status() Status {
	if s.status == "" {
		return StatusInProgress
	}
	return s.status
}

// Err returns the failure reason once the task ended in error
func (s *State) Err() error {
	return s.err
}

// Finished reports whether the task left the in-progress state
func (s *State) Finished() bool {
	return s.Status() != StatusInProgress
}

// SetDone marks the task as successfully completed
func (s *State) SetDone() {
	s.status = StatusDone
	s.err = nil
}

// SetError marks the task as failed with the given reason
func (s *State) SetError(err error) {
	s.status = StatusError
	s.err = err
}

type failedTask struct {
	State
}

func (t *failedTask) Update() {}
func (t *failedTask) Cancel() {}

// Failed returns a task that is already in the error state
func Failed(err error) Task {
	t := &failedTask{}
	t.SetError(err)
	return t
}

// Await polls the task on a ticker until it finishes. Cancelling ctx cancels the task.
func Await(ctx context.Context, task Task, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task.Update()
		switch task.Status() {
		case StatusDone:
			return nil
		case StatusError:
			return task.Err()
		}

		select {
		case <-ctx.Done():
			task.Cancel()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// AwaitResult waits for the handle and returns its result
func AwaitResult[T any](ctx context.Context, handle Handle[T], interval time.Duration) (T, error) {
	if err := Await(ctx, handle, interval); err != nil {
		result, _ := handle.Result()
		return result, err
	}
	return handle.Result()
}

type observedTask struct {
	Task
	observe func(Task)
}

func (t *observedTask) Update() {
	t.Task.Update()
	t.observe(t.Task)
}

// Observe wraps task so that observe runs right after every Update, on the
// goroutine doing the polling
func Observe(task Task, observe func(Task)) Task {
	return &observedTask{Task: task, observe: observe}
}
