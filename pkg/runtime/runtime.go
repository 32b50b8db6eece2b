package runtime

import (
	"context"
	"time"
)

// ContainerState is the coarse container state reported by a runtime.
type ContainerState string

const (
	// ContainerPending means the container exists but has no running task.
	ContainerPending ContainerState = "pending"

	// ContainerRunning means the container's process is running.
	ContainerRunning ContainerState = "running"

	// ContainerExited means the process stopped with exit status zero.
	ContainerExited ContainerState = "exited"

	// ContainerFailed means the process stopped with a nonzero exit status.
	ContainerFailed ContainerState = "failed"
)

// Mount is a bind mount into a container.
type Mount struct {
	// HostPath is the source directory on the host.
	HostPath string

	// ContainerPath is the destination inside the container.
	ContainerPath string

	// ReadOnly mounts the path read-only.
	ReadOnly bool
}

// ContainerConfig describes a container to create.
type ContainerConfig struct {
	// Name is the runtime-visible container ID. It must be unique.
	Name string

	// Image is the image reference to run.
	Image string

	// Command overrides the image's entrypoint arguments when non-empty.
	Command []string

	// Env is the full environment, "KEY=value" pairs.
	Env []string

	// Mounts are bind mounts into the container.
	Mounts []Mount
}

// Runtime abstracts the host's container runtime. Implementations are safe
// for concurrent use.
type Runtime interface {
	// PullImage pulls an image from a registry.
	PullImage(ctx context.Context, imageRef string) error

	// CreateContainer creates a container and returns its runtime ID.
	CreateContainer(ctx context.Context, cfg ContainerConfig) (string, error)

	// StartContainer starts a created container.
	StartContainer(ctx context.Context, containerID string) error

	// StopContainer stops a running container, sending SIGTERM and
	// escalating to SIGKILL after timeout.
	StopContainer(ctx context.Context, containerID string, timeout time.Duration) error

	// DeleteContainer removes a container and its snapshot. Removing an
	// absent container is not an error.
	DeleteContainer(ctx context.Context, containerID string) error

	// ContainerStatus returns the container's coarse state.
	ContainerStatus(ctx context.Context, containerID string) (ContainerState, error)

	// Close releases the runtime client.
	Close() error
}
