// Package model holds the host's desired state: the tasks published for
// this node and the observed per-job statuses reported back by supervisors.
// Listeners registered on the model are notified after every task mutation,
// which the agent translates into reconciliation ticks.
package model
