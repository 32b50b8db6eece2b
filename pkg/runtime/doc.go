// Package runtime abstracts the host's container runtime behind a small
// interface: pull, create, start, stop, delete, and status. The containerd
// implementation scopes all operations to a dedicated namespace and maps
// containerd task states onto the agent's coarse container states.
package runtime
