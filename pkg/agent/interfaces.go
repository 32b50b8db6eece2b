package agent

import (
	"time"

	"github.com/danielnorberg/helios/pkg/reactor"
	"github.com/danielnorberg/helios/pkg/types"
)

// Model is the desired-state surface the agent consumes. Implementations
// must be safe for concurrent use; listener notifications may arrive from
// arbitrary goroutines.
type Model interface {
	// Tasks returns a snapshot of the desired tasks keyed by job ID.
	Tasks() map[types.JobID]types.Task

	// AddListener registers fn to be called after any task mutation.
	AddListener(fn func())

	// RemoveUndeployTombstone removes the undeploy task for the job, if
	// present. Idempotent.
	RemoveUndeployTombstone(id types.JobID)

	// RemoveTaskStatus removes the observed status for the job, if present.
	// Idempotent.
	RemoveTaskStatus(id types.JobID)
}

// Supervisor is the per-job actor owning one container's lifecycle. Methods
// are thread-safe; Start and Stop dispatch and return promptly rather than
// waiting for the container.
type Supervisor interface {
	// Start requests the container to be running. Idempotent.
	Start()

	// Stop requests the container to be halted. Idempotent.
	Stop()

	// Close releases supervisor resources. During reconciliation the agent
	// calls it only after IsDone reports true and Status reports
	// StateStopped; Agent.Stop closes every supervisor regardless of state.
	Close() error

	// IsStarting reports whether the supervisor's current intent is to run
	// the container.
	IsStarting() bool

	// IsStopping reports whether the supervisor's current intent is to halt
	// the container.
	IsStopping() bool

	// IsDone reports whether the supervisor has reached a terminal state.
	IsDone() bool

	// Status returns the observed container state.
	Status() types.JobState
}

// SupervisorFactory constructs supervisors bound to the host's container
// runtime.
type SupervisorFactory interface {
	Create(id types.JobID, job types.Job, allocation map[string]int) Supervisor
}

// Reactor is the capability the agent needs from its update loop.
type Reactor interface {
	Start()
	Stop()
	Update()
}

// ReactorFactory creates the reactor driving the agent. Tests substitute a
// factory whose reactor runs ticks synchronously.
type ReactorFactory func(name string, callback reactor.Callback, interval time.Duration) Reactor
