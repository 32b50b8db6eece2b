// Package metrics exposes the agent's Prometheus collectors: reconciliation
// tick counts and durations, live supervisor and execution gauges, and
// failure counters for port allocation, persistence, and supervisor
// operations.
package metrics
