// Package config loads and validates the agent's YAML configuration:
// reconciliation interval, dynamic port range, executions store location and
// backend, containerd socket, API address, and log settings.
package config
