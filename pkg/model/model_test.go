package model

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielnorberg/helios/pkg/types"
)

func task(id types.JobID, goal types.Goal) types.Task {
	return types.Task{
		Job:  types.Job{ID: id, Image: "nginx:1.25"},
		Goal: goal,
	}
}

func TestPutTaskNotifiesListeners(t *testing.T) {
	m := NewInMemory()

	var notified atomic.Int64
	m.AddListener(func() { notified.Add(1) })

	m.PutTask(task("web:1", types.GoalStart))

	assert.Equal(t, int64(1), notified.Load())
	assert.Len(t, m.Tasks(), 1)
}

func TestTasksReturnsSnapshot(t *testing.T) {
	m := NewInMemory()
	m.PutTask(task("web:1", types.GoalStart))

	snapshot := m.Tasks()
	delete(snapshot, "web:1")

	assert.Len(t, m.Tasks(), 1, "mutating a snapshot must not affect the model")
}

func TestSetGoal(t *testing.T) {
	m := NewInMemory()
	m.PutTask(task("web:1", types.GoalStart))

	assert.True(t, m.SetGoal("web:1", types.GoalStop))
	assert.Equal(t, types.GoalStop, m.Tasks()["web:1"].Goal)

	assert.False(t, m.SetGoal("missing", types.GoalStop))
}

func TestRemoveUndeployTombstone(t *testing.T) {
	m := NewInMemory()
	m.PutTask(task("web:1", types.GoalUndeploy))
	m.PutTask(task("db:1", types.GoalStart))

	m.RemoveUndeployTombstone("web:1")
	assert.NotContains(t, m.Tasks(), types.JobID("web:1"))

	// Non-tombstone tasks are left alone.
	m.RemoveUndeployTombstone("db:1")
	assert.Contains(t, m.Tasks(), types.JobID("db:1"))

	// Idempotent on absent entries.
	m.RemoveUndeployTombstone("web:1")
}

func TestTaskStatus(t *testing.T) {
	m := NewInMemory()

	_, ok := m.TaskStatus("web:1")
	assert.False(t, ok)

	m.SetTaskStatus("web:1", types.JobStatus{State: types.StateRunning, ContainerID: "c1"})

	status, ok := m.TaskStatus("web:1")
	assert.True(t, ok)
	assert.Equal(t, types.StateRunning, status.State)

	m.RemoveTaskStatus("web:1")
	_, ok = m.TaskStatus("web:1")
	assert.False(t, ok)

	// Idempotent.
	m.RemoveTaskStatus("web:1")
}

func TestListenerMayCallBackIntoModel(t *testing.T) {
	m := NewInMemory()

	var sawTasks atomic.Int64
	m.AddListener(func() {
		sawTasks.Store(int64(len(m.Tasks())))
	})

	m.PutTask(task("web:1", types.GoalStart))
	assert.Equal(t, int64(1), sawTasks.Load())
}
