/*
Package ports allocates host ports for jobs.

The allocator is deterministic and all-or-nothing: given a job's named port
specs and the set of host ports already in use, it returns either one host
port per name (pairwise disjoint and disjoint from the used set) or nil.
Explicitly requested host ports are honored first; the rest are filled with
the lowest free ports from a configured dynamic range.

Allocation failure is not an error condition. The agent logs a warning and
retries on a later reconciliation tick, when ports may have been released.
*/
package ports
