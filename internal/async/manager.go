package async

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelsos/media-scraper/internal/logger"
)

// TaskID identifies a task registered with a Manager
type TaskID string

type managedTask struct {
	id   TaskID
	task Task
	done chan Status
}

// Manager ticks every registered task from a single poll loop. Each task is
// only ever touched while the manager lock is held, so tasks themselves need
// no synchronization.
type Manager struct {
	activeTasks   []*managedTask
	mu            sync.Mutex
	pollInterval  time.Duration
	stopPolling   chan struct{}
	pollingActive bool
}

// NewManager creates a manager ticking at the given interval
func NewManager(pollInterval time.Duration) *Manager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Manager{
		pollInterval: pollInterval,
	}
}

// Register starts ticking the task. The returned channel receives the final status and is then closed.
func (m *Manager) Register(task Task) (TaskID, <-chan Status) {
	entry := &managedTask{
		id:   TaskID(uuid.NewString()),
		task: task,
		done: make(chan Status, 1),
	}

	m.mu.Lock()
	m.activeTasks = append(m.activeTasks, entry)

	if !m.pollingActive {
		m.pollingActive = true
		m.stopPolling = make(chan struct{})
		go m.pollTasks(m.stopPolling)
	}
	m.mu.Unlock()

	logger.Debug("Registered task %s for polling", entry.id)
	return entry.id, entry.done
}

func (m *Manager) pollTasks(stop <-chan struct{}) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.checkTasks()
		}
	}
}

func (m *Manager) checkTasks() {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.activeTasks[:0]
	for _, entry := range m.activeTasks {
		entry.task.Update()
		if status := entry.task.Status(); status != StatusInProgress {
			finish(entry, status)
			continue
		}
		remaining = append(remaining, entry)
	}
	clearTail(m.activeTasks, len(remaining))
	m.activeTasks = remaining

	if len(m.activeTasks) == 0 {
		m.stopLocked()
	}
}

// Cancel cancels a registered task and delivers its final status
func (m *Manager) Cancel(id TaskID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.activeTasks {
		if entry.id != id {
			continue
		}
		entry.task.Cancel()
		finish(entry, entry.task.Status())
		m.activeTasks = append(m.activeTasks[:i], m.activeTasks[i+1:]...)
		return true
	}
	return false
}

// Active returns the number of tasks still being polled
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeTasks)
}

// Stop cancels every remaining task and stops the poll loop
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.activeTasks {
		entry.task.Cancel()
		finish(entry, entry.task.Status())
	}
	m.activeTasks = nil
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.pollingActive {
		close(m.stopPolling)
		m.pollingActive = false
	}
}

func finish(entry *managedTask, status Status) {
	entry.done <- status
	close(entry.done)
	logger.Debug("Task %s finished with status %s", entry.id, status)
}

func clearTail(tasks []*managedTask, from int) {
	for i := from; i < len(tasks); i++ {
		tasks[i] = nil
	}
}
