/*
Package reactor provides a single-worker, level-triggered task runner.

A Reactor serializes every invocation of its callback: at most one runs at
any time. Update is the level trigger. Calling it during an in-flight run
guarantees one further run after the current one finishes; any number of
Update calls in that window collapse into that single further run, because
the mailbox holds at most one token. A timed refresh also fires the callback
every interval, so a missed notification can delay convergence but never
prevent it.

Stop cancels the worker's context and blocks until the worker has returned
from any in-flight callback and terminated. Updates pending at shutdown are
discarded. Callbacks must treat cancellation as a clean exit.
*/
package reactor
