package types

import "maps"

// Execution is the committed, durable per-job decision binding a job to a
// goal and the host ports allocated for it. A nil Ports map means allocation
// has not happened yet. Executions are immutable; derive new values with
// WithGoal and WithPorts.
type Execution struct {
	Job   Job            `json:"job"`
	Goal  Goal           `json:"goal"`
	Ports map[string]int `json:"ports,omitempty"`
}

// NewExecution returns an execution for job with the given goal and no
// allocated ports.
func NewExecution(job Job, goal Goal) Execution {
	return Execution{Job: job, Goal: goal}
}

// WithGoal returns a copy of e with the goal replaced.
func (e Execution) WithGoal(goal Goal) Execution {
	e.Goal = goal
	return e
}

// WithPorts returns a copy of e with the port allocation replaced.
func (e Execution) WithPorts(ports map[string]int) Execution {
	e.Ports = ports
	return e
}

// Equal reports structural equality over (job, goal, ports).
func (e Execution) Equal(o Execution) bool {
	if e.Goal != o.Goal || !e.Job.Equal(o.Job) {
		return false
	}
	if (e.Ports == nil) != (o.Ports == nil) {
		return false
	}
	return maps.Equal(e.Ports, o.Ports)
}

// ExecutionsEqual reports whether two execution maps hold structurally equal
// entries for the same job IDs.
func ExecutionsEqual(a, b map[JobID]Execution) bool {
	return maps.EqualFunc(a, b, Execution.Equal)
}
