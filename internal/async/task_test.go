package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdownTask finishes after a number of updates
type countdownTask struct {
	State
	remaining int
	fail      error
	updates   int
	cancelled bool
}

func (t *countdownTask) Update() {
	if t.Finished() {
		return
	}
	t.updates++
	if t.remaining > 0 {
		t.remaining--
		return
	}
	if t.fail != nil {
		t.SetError(t.fail)
		return
	}
	t.SetDone()
}

func (t *countdownTask) Cancel() {
	t.cancelled = true
	t.SetError(ErrCancelled)
}

func (t *countdownTask) Result() (int, error) {
	if !t.Finished() {
		return 0, ErrInProgress
	}
	return t.updates, t.Err()
}

func TestState_ZeroValueIsInProgress(t *testing.T) {
	var s State
	assert.Equal(t, StatusInProgress, s.Status())
	assert.False(t, s.Finished())

	s.SetError(errors.New("boom"))
	assert.Equal(t, StatusError, s.Status())
	assert.EqualError(t, s.Err(), "boom")

	s.SetDone()
	assert.Equal(t, StatusDone, s.Status())
	assert.NoError(t, s.Err())
}

func TestFailed(t *testing.T) {
	boom := errors.New("boom")
	task := Failed(boom)
	task.Update()
	task.Cancel()
	assert.Equal(t, StatusError, task.Status())
	assert.ErrorIs(t, task.Err(), boom)
}

func TestAwait_Done(t *testing.T) {
	task := &countdownTask{remaining: 3}
	require.NoError(t, Await(context.Background(), task, time.Millisecond))
	assert.Equal(t, 4, task.updates)
}

func TestAwait_Error(t *testing.T) {
	boom := errors.New("boom")
	task := &countdownTask{remaining: 1, fail: boom}
	assert.ErrorIs(t, Await(context.Background(), task, time.Millisecond), boom)
}

func TestAwait_ContextCancelCancelsTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := &countdownTask{remaining: 1000}
	err := Await(ctx, task, time.Millisecond)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, task.cancelled)
	assert.ErrorIs(t, task.Err(), ErrCancelled)
}

func TestAwaitResult(t *testing.T) {
	task := &countdownTask{remaining: 2}
	updates, err := AwaitResult[int](context.Background(), task, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, updates)
}

func TestObserve(t *testing.T) {
	task := &countdownTask{remaining: 2}
	var seen []Status
	observed := Observe(task, func(t Task) {
		seen = append(seen, t.Status())
	})

	for observed.Status() == StatusInProgress {
		observed.Update()
	}

	assert.Equal(t, []Status{StatusInProgress, StatusInProgress, StatusDone}, seen)
}
