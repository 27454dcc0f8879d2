// Package logging builds the slog loggers used across the daemon: a compact
// console handler for interactive use, a JSON handler for log files, and
// helpers for attaching standardized pipeline fields.
package logging
