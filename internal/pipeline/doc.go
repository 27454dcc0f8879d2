// Package pipeline drives concatenation jobs from the queue to finished
// artifacts. A pool of workers claims queued jobs, verifies their chapter
// files, runs the external concatenation tool with progress mapped onto the
// job record, and publishes lifecycle events per session. Heartbeats keep
// crashed work reclaimable.
package pipeline
