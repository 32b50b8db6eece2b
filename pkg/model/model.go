package model

import (
	"maps"
	"sync"

	"github.com/danielnorberg/helios/pkg/types"
)

// InMemory is an in-memory desired-state model. The control-plane side
// (here, the HTTP API) writes tasks into it; the agent reads tasks out and
// reports observed job status back. Safe for concurrent use.
type InMemory struct {
	mu        sync.RWMutex
	tasks     map[types.JobID]types.Task
	statuses  map[types.JobID]types.JobStatus
	listeners []func()
}

// NewInMemory creates an empty model.
func NewInMemory() *InMemory {
	return &InMemory{
		tasks:    make(map[types.JobID]types.Task),
		statuses: make(map[types.JobID]types.JobStatus),
	}
}

// Tasks returns a snapshot of the desired tasks.
func (m *InMemory) Tasks() map[types.JobID]types.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.tasks)
}

// PutTask inserts or replaces the task for its job ID and notifies
// listeners.
func (m *InMemory) PutTask(task types.Task) {
	m.mu.Lock()
	m.tasks[task.Job.ID] = task
	m.mu.Unlock()
	m.notify()
}

// SetGoal changes the goal of an existing task. It reports whether the task
// exists.
func (m *InMemory) SetGoal(id types.JobID, goal types.Goal) bool {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if ok {
		task.Goal = goal
		m.tasks[id] = task
	}
	m.mu.Unlock()
	if ok {
		m.notify()
	}
	return ok
}

// RemoveUndeployTombstone removes the task for id if its goal is undeploy.
// Idempotent.
func (m *InMemory) RemoveUndeployTombstone(id types.JobID) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if ok && task.Goal == types.GoalUndeploy {
		delete(m.tasks, id)
	} else {
		ok = false
	}
	m.mu.Unlock()
	if ok {
		m.notify()
	}
}

// SetTaskStatus records the observed status for a job.
func (m *InMemory) SetTaskStatus(id types.JobID, status types.JobStatus) {
	m.mu.Lock()
	m.statuses[id] = status
	m.mu.Unlock()
}

// TaskStatus returns the observed status for a job.
func (m *InMemory) TaskStatus(id types.JobID) (types.JobStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[id]
	return status, ok
}

// TaskStatuses returns a snapshot of all observed statuses.
func (m *InMemory) TaskStatuses() map[types.JobID]types.JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.statuses)
}

// RemoveTaskStatus removes the observed status for a job. Idempotent.
func (m *InMemory) RemoveTaskStatus(id types.JobID) {
	m.mu.Lock()
	delete(m.statuses, id)
	m.mu.Unlock()
}

// AddListener registers fn to be called after any task mutation.
func (m *InMemory) AddListener(fn func()) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// notify invokes listeners outside the model lock so a listener may call
// back into the model.
func (m *InMemory) notify() {
	m.mu.RLock()
	listeners := make([]func(), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
