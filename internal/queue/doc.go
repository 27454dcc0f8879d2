// Package queue persists concatenation jobs in SQLite so work submitted
// before a crash or restart is retained and resumed. Claiming is guarded by
// a compare-and-set status transition, which keeps multiple workers from
// picking up the same job.
package queue
