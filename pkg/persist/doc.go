/*
Package persist provides atomic, durable storage of a single value.

A Cell holds one value of type T. Set replaces it so that after Set returns,
any Get observes the new value and a process crash preserves it; a failed Set
leaves the previous value intact. Partial writes are never observable.

Two backends implement the contract. FileCell serializes to a temporary file
in the target's directory, fsyncs, and atomically renames over the target;
stale temp files from interrupted writes are discarded on open. BoltCell
stores the value under a key in a BoltDB database and relies on BoltDB's
transactional durability.

Values are wrapped in a versioned envelope. Opening a cell whose stored
layout version differs from this binary's fails with ErrStateIncompatible
rather than silently reinterpreting old state.
*/
package persist
