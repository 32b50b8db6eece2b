/*
Package types defines the data model shared across the agent: jobs, goals,
tasks, executions, and observed job status.

A Task pairs a Job with a Goal and is the element of desired state published
by the control plane. An Execution is the agent's durable decision for a job:
the goal it is converging toward and the host ports allocated to it. The
agent persists the full JobID → Execution map so allocated ports survive a
crash-restart.

Values in this package are immutable once constructed; Execution is modified
by deriving a new value with WithGoal or WithPorts.
*/
package types
