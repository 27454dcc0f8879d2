// Package api defines the transport-facing representations of jobs, groups,
// and outputs plus the read services backing the HTTP handlers and CLI.
package api
