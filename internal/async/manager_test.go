package async

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitStatus(t *testing.T, done <-chan Status) Status {
	t.Helper()
	select {
	case status, ok := <-done:
		require.True(t, ok, "done channel closed without a status")
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task")
		return ""
	}
}

func TestManager_PollsTasksToCompletion(t *testing.T) {
	m := NewManager(time.Millisecond)
	defer m.Stop()

	fast := &countdownTask{remaining: 1}
	slow := &countdownTask{remaining: 5, fail: errors.New("boom")}

	fastID, fastDone := m.Register(fast)
	slowID, slowDone := m.Register(slow)
	assert.NotEqual(t, fastID, slowID)

	assert.Equal(t, StatusDone, waitStatus(t, fastDone))
	assert.Equal(t, StatusError, waitStatus(t, slowDone))
	assert.Equal(t, 0, m.Active())

	_, open := <-fastDone
	assert.False(t, open)
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager(time.Millisecond)
	defer m.Stop()

	task := &countdownTask{remaining: 1 << 30}
	id, done := m.Register(task)

	assert.True(t, m.Cancel(id))
	assert.Equal(t, StatusError, waitStatus(t, done))
	assert.True(t, task.cancelled)
	assert.False(t, m.Cancel(id))
}

func TestManager_StopCancelsRemainingTasks(t *testing.T) {
	m := NewManager(time.Millisecond)

	first := &countdownTask{remaining: 1 << 30}
	second := &countdownTask{remaining: 1 << 30}
	_, firstDone := m.Register(first)
	_, secondDone := m.Register(second)

	m.Stop()

	assert.Equal(t, StatusError, waitStatus(t, firstDone))
	assert.Equal(t, StatusError, waitStatus(t, secondDone))
	assert.True(t, first.cancelled)
	assert.True(t, second.cancelled)
	assert.Equal(t, 0, m.Active())
}

func TestManager_RestartsAfterIdle(t *testing.T) {
	m := NewManager(time.Millisecond)
	defer m.Stop()

	_, done := m.Register(&countdownTask{})
	assert.Equal(t, StatusDone, waitStatus(t, done))

	_, done = m.Register(&countdownTask{remaining: 2})
	assert.Equal(t, StatusDone, waitStatus(t, done))
}
