// Package api exposes the agent's HTTP surface: desired-task management,
// observed job status, liveness and readiness probes, and Prometheus
// metrics. Putting a task publishes desired state into the model, which the
// agent reconciles on its next tick.
package api
