package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the failure classes the pipeline distinguishes.
// Wrap tags errors with one of these so callers can classify with errors.Is.
var (
	// ErrValidation covers malformed requests and batches with no usable
	// groups. Surfaced synchronously; no job is created.
	ErrValidation = errors.New("validation error")
	// ErrInputMissing marks an input file that vanished between grouping
	// and execution.
	ErrInputMissing = errors.New("input missing")
	// ErrConcatenation marks a concatenation subprocess that exited
	// non-zero or could not be spawned.
	ErrConcatenation = errors.New("concatenation failed")
	// ErrUnavailable marks an unreachable collaborator (queue database,
	// event channel). Fatal to accepting new work, never to running jobs.
	ErrUnavailable = errors.New("service unavailable")
)

// Kind is the wire-friendly name of a failure class.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindInputMissing Kind = "input_missing"
	KindConcatFailed Kind = "concatenation_failed"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// maxDetailLen bounds diagnostic text carried in job records and events.
const maxDetailLen = 512

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the classified view of a stage error.
type ErrorDetails struct {
	Kind    Kind
	Message string
}

// Details classifies err and extracts a bounded human-readable message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindInternal}
	}
	details := ErrorDetails{Kind: KindInternal, Message: Truncate(err.Error())}
	switch {
	case errors.Is(err, ErrValidation):
		details.Kind = KindValidation
	case errors.Is(err, ErrInputMissing):
		details.Kind = KindInputMissing
	case errors.Is(err, ErrConcatenation):
		details.Kind = KindConcatFailed
	case errors.Is(err, ErrUnavailable):
		details.Kind = KindUnavailable
	}
	return details
}

// Truncate bounds a diagnostic string so event payloads stay small.
func Truncate(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= maxDetailLen {
		return value
	}
	return value[:maxDetailLen-3] + "..."
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
