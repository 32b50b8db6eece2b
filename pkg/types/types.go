package types

import (
	"maps"
	"slices"
)

// JobID identifies a deployable unit on this host. IDs are opaque to the
// agent, compare structurally and sort lexicographically.
type JobID string

func (id JobID) String() string {
	return string(id)
}

// SortedJobIDs returns the keys of m in ascending order. Reconciliation
// iterates jobs in this order so port allocation stays deterministic.
func SortedJobIDs[V any](m map[JobID]V) []JobID {
	ids := make([]JobID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// PortSpec describes one named logical port of a job.
type PortSpec struct {
	// InternalPort is the port the process listens on inside the container.
	InternalPort int `json:"internal_port"`

	// ExternalPort is the host port requested by the deployer. Nil means any
	// free port from the configured dynamic range.
	ExternalPort *int `json:"external_port,omitempty"`

	// Protocol is "tcp" or "udp". Empty defaults to "tcp".
	Protocol string `json:"protocol,omitempty"`
}

// Equal reports structural equality.
func (p PortSpec) Equal(o PortSpec) bool {
	if p.InternalPort != o.InternalPort || p.Protocol != o.Protocol {
		return false
	}
	if (p.ExternalPort == nil) != (o.ExternalPort == nil) {
		return false
	}
	return p.ExternalPort == nil || *p.ExternalPort == *o.ExternalPort
}

// Job describes what to run. Immutable once constructed.
type Job struct {
	ID      JobID               `json:"id"`
	Image   string              `json:"image"`
	Command []string            `json:"command,omitempty"`
	Env     []string            `json:"env,omitempty"`
	Ports   map[string]PortSpec `json:"ports,omitempty"`

	// Volumes maps container paths to host paths bind-mounted read-write.
	Volumes map[string]string `json:"volumes,omitempty"`
}

// Equal reports structural equality.
func (j Job) Equal(o Job) bool {
	return j.ID == o.ID &&
		j.Image == o.Image &&
		slices.Equal(j.Command, o.Command) &&
		slices.Equal(j.Env, o.Env) &&
		maps.EqualFunc(j.Ports, o.Ports, PortSpec.Equal) &&
		maps.Equal(j.Volumes, o.Volumes)
}

// Goal is the desired disposition of a job.
type Goal string

const (
	// GoalStart means the job's container should be running.
	GoalStart Goal = "start"

	// GoalStop means the job's container should be halted but retained.
	GoalStop Goal = "stop"

	// GoalUndeploy is a tombstone: the job is removed once its supervisor
	// is confirmed gone.
	GoalUndeploy Goal = "undeploy"
)

// Task is the desired-state element published by the control plane.
type Task struct {
	Job  Job  `json:"job"`
	Goal Goal `json:"goal"`
}

// JobState is the observed state of a job's container.
type JobState string

const (
	StatePullingImage JobState = "pulling_image"
	StateStarting     JobState = "starting"
	StateRunning      JobState = "running"
	StateStopping     JobState = "stopping"
	StateStopped      JobState = "stopped"
	StateFailed       JobState = "failed"
)

// JobStatus is the observed state a supervisor reports back into the model.
type JobStatus struct {
	State       JobState `json:"state"`
	ContainerID string   `json:"container_id,omitempty"`
	Error       string   `json:"error,omitempty"`
}
