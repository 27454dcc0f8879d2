package notify

import "time"

// EventType discriminates the job lifecycle events on the stream.
type EventType string

const (
	EventJobProgress EventType = "job-progress"
	EventJobComplete EventType = "job-complete"
	EventJobError    EventType = "job-error"
)

// Event is one job lifecycle notification scoped to an upload session.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	GroupID   string    `json:"group_id"`
	JobID     int64     `json:"job_id"`
	Seq       uint64    `json:"seq"`
	Stage     string    `json:"stage,omitempty"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Output    string    `json:"output,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the emission contract the pipeline depends on. ResetGroup
// clears delivery guards so a retried group can emit a fresh event series.
type Publisher interface {
	Progress(sessionID, groupID string, jobID int64, stage string, percent float64, message string)
	Completed(sessionID, groupID string, jobID int64, output string)
	Failed(sessionID, groupID string, jobID int64, kind, message string)
	ResetGroup(sessionID, groupID string)
}

// Noop discards all events. Useful for tests and tooling that runs the
// pipeline without streaming consumers.
type Noop struct{}

func (Noop) Progress(string, string, int64, string, float64, string) {}

func (Noop) Completed(string, string, int64, string) {}

func (Noop) Failed(string, string, int64, string, string) {}

func (Noop) ResetGroup(string, string) {}

var _ Publisher = Noop{}
