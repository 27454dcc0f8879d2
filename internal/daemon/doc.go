// Package daemon wires the queue store, pipeline, event hub, retention
// sweeper, and HTTP API into a single-instance background service guarded by
// a file lock.
package daemon
