// Package log wraps zerolog with a process-wide logger and helpers for
// attaching the component and job_id fields used across the agent.
package log
