/*
Package supervisor runs one job's container and keeps it alive.

A supervisor is an actor: Start and Stop record intent and wake a single
worker goroutine that performs every runtime operation, so commands dispatch
without blocking on the container. While the intent is to run, a container
that stops unexpectedly is restarted after a delay; container-level retry is
this package's responsibility, not the reconciler's.

Observed state transitions are reported into the model and published on the
event broker. Allocated host ports are handed to the container as
HELIOS_PORT_<NAME> environment variables.

Close releases the supervisor without stopping its container. A restarted
agent rebuilds supervisors from the persisted execution map with the same
port allocations, but a rebuilt supervisor does not adopt a container left
running by the previous run: it creates and starts a new container, and the
earlier one stays in the runtime unmanaged.
*/
package supervisor
