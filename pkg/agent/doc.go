/*
Package agent implements the node-local reconciler that drives the host's
containers toward the desired deployment state.

The agent is level-triggered: a single-worker reactor serializes every
reconciliation tick, and each tick diffs the model's desired tasks against
the persisted execution map and the live supervisors. A tick proceeds in
fixed phases: merge goals into executions, allocate host ports, persist,
release stopped supervisors, spawn missing supervisors, delegate goals, and
reap undeploy tombstones.

Persistence comes before supervisor mutation so that a crash between
deciding on ports and running containers never leaks an allocation to a
different job. Stopped supervisors are released before new ones are spawned
so that no two supervisors ever manage the same job concurrently. Tombstoned
executions are removed only once no supervisor holds the job, and their
status entries are cleared from the model at the same time.

Transient faults are absorbed: port exhaustion and persistence failures are
logged, counted, and retried on a later tick.
*/
package agent
