package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int {
	return &v
}

func TestExecutionWithGoal(t *testing.T) {
	job := Job{ID: "web:1", Image: "nginx:1.25"}
	e := NewExecution(job, GoalStart)

	stopped := e.WithGoal(GoalStop)

	assert.Equal(t, GoalStop, stopped.Goal)
	assert.Equal(t, GoalStart, e.Goal, "original execution must be unchanged")
	assert.True(t, stopped.Job.Equal(job))
}

func TestExecutionWithPorts(t *testing.T) {
	e := NewExecution(Job{ID: "web:1", Image: "nginx:1.25"}, GoalStart)

	allocated := e.WithPorts(map[string]int{"http": 20000})

	assert.Nil(t, e.Ports, "original execution must keep nil ports")
	assert.Equal(t, map[string]int{"http": 20000}, allocated.Ports)
}

func TestExecutionEqual(t *testing.T) {
	job := Job{ID: "web:1", Image: "nginx:1.25", Ports: map[string]PortSpec{
		"http": {InternalPort: 80},
	}}

	tests := []struct {
		name  string
		a, b  Execution
		equal bool
	}{
		{
			name:  "identical",
			a:     NewExecution(job, GoalStart).WithPorts(map[string]int{"http": 20000}),
			b:     NewExecution(job, GoalStart).WithPorts(map[string]int{"http": 20000}),
			equal: true,
		},
		{
			name:  "different goal",
			a:     NewExecution(job, GoalStart),
			b:     NewExecution(job, GoalStop),
			equal: false,
		},
		{
			name:  "nil vs allocated ports",
			a:     NewExecution(job, GoalStart),
			b:     NewExecution(job, GoalStart).WithPorts(map[string]int{"http": 20000}),
			equal: false,
		},
		{
			name:  "different port numbers",
			a:     NewExecution(job, GoalStart).WithPorts(map[string]int{"http": 20000}),
			b:     NewExecution(job, GoalStart).WithPorts(map[string]int{"http": 20001}),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a))
		})
	}
}

func TestExecutionsEqual(t *testing.T) {
	job := Job{ID: "web:1", Image: "nginx:1.25"}

	a := map[JobID]Execution{"web:1": NewExecution(job, GoalStart)}
	b := map[JobID]Execution{"web:1": NewExecution(job, GoalStart)}
	assert.True(t, ExecutionsEqual(a, b))

	b["web:1"] = b["web:1"].WithGoal(GoalStop)
	assert.False(t, ExecutionsEqual(a, b))

	b["web:1"] = b["web:1"].WithGoal(GoalStart)
	b["db:1"] = NewExecution(Job{ID: "db:1", Image: "postgres:16"}, GoalStart)
	assert.False(t, ExecutionsEqual(a, b))
}

func TestPortSpecEqual(t *testing.T) {
	assert.True(t, PortSpec{InternalPort: 80}.Equal(PortSpec{InternalPort: 80}))
	assert.False(t, PortSpec{InternalPort: 80}.Equal(PortSpec{InternalPort: 80, ExternalPort: intPtr(8080)}))
	assert.True(t, PortSpec{InternalPort: 80, ExternalPort: intPtr(8080)}.Equal(PortSpec{InternalPort: 80, ExternalPort: intPtr(8080)}))
	assert.False(t, PortSpec{InternalPort: 80, ExternalPort: intPtr(8080)}.Equal(PortSpec{InternalPort: 80, ExternalPort: intPtr(8081)}))
	assert.False(t, PortSpec{InternalPort: 80, Protocol: "udp"}.Equal(PortSpec{InternalPort: 80}))
}

func TestSortedJobIDs(t *testing.T) {
	m := map[JobID]Execution{
		"c": {},
		"a": {},
		"b": {},
	}
	assert.Equal(t, []JobID{"a", "b", "c"}, SortedJobIDs(m))
}
