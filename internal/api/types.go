package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ChapterView describes one chapter file inside a sequence group.
type ChapterView struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// GroupView describes a recognized sequence group ready for processing.
type GroupView struct {
	GroupID  string        `json:"group_id"`
	Encoding string        `json:"encoding"`
	Sequence int           `json:"sequence"`
	Chapters []ChapterView `json:"chapters"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// JobView describes a queue job in a transport-friendly format.
type JobView struct {
	ID           int64       `json:"job_id"`
	SessionID    string      `json:"session_id"`
	GroupID      string      `json:"group_id"`
	Encoding     string      `json:"encoding"`
	Sequence     int         `json:"sequence"`
	Status       string      `json:"state"`
	Progress     JobProgress `json:"progress"`
	ErrorKind    string      `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	OutputFile   string      `json:"output_file,omitempty"`
	CreatedAt    string      `json:"created_at,omitempty"`
	UpdatedAt    string      `json:"updated_at,omitempty"`
}

// OutputView describes a finished artifact.
type OutputView struct {
	SessionID string `json:"session_id"`
	GroupID   string `json:"group_id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// UploadResponse reports the grouped result of an upload batch.
type UploadResponse struct {
	SessionID string      `json:"session_id"`
	Groups    []GroupView `json:"groups"`
	Ignored   []string    `json:"ignored,omitempty"`
}

// ProcessRequest selects which groups of a session to enqueue. An empty list
// selects every recognized group.
type ProcessRequest struct {
	GroupIDs []string `json:"group_ids"`
}

// ProcessResponse lists the jobs created for a process request.
type ProcessResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// OutputListResponse wraps a collection of outputs.
type OutputListResponse struct {
	Outputs []OutputView `json:"outputs"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queue_stats"`
	QueueDB    string         `json:"queue_db_path,omitempty"`
	LockFile   string         `json:"lock_file_path,omitempty"`
}

// RetryRequest selects failed jobs to requeue; empty retries all.
type RetryRequest struct {
	JobIDs []int64 `json:"job_ids"`
}

// ClearRequest selects which terminal jobs to drop from the queue.
type ClearRequest struct {
	Scope string `json:"scope"` // all, completed, failed
}

// ActionResponse reports how many rows an operator action touched.
type ActionResponse struct {
	Affected int64 `json:"affected"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
