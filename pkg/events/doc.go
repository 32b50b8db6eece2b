// Package events provides an in-process broker for agent lifecycle events:
// supervisor creation and release, execution creation and reaping, and job
// state transitions. Subscribers receive events on buffered channels; slow
// subscribers drop events rather than stalling the publisher.
package events
