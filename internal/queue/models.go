package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a concatenation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusActive,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job represents one sequence group waiting for, undergoing, or finished
// with concatenation.
type Job struct {
	ID              int64
	SessionID       string
	GroupID         string
	Encoding        string
	Sequence        int
	InputPathsJSON  string
	Status          Status
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ErrorKind       string
	ErrorMessage    string
	OutputFile      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// InputPaths decodes the stored chapter file paths in chapter order.
func (j *Job) InputPaths() ([]string, error) {
	if strings.TrimSpace(j.InputPathsJSON) == "" {
		return nil, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(j.InputPathsJSON), &paths); err != nil {
		return nil, fmt.Errorf("decode input paths for job %d: %w", j.ID, err)
	}
	return paths, nil
}

// SetInputPaths encodes the chapter file paths for storage.
func (j *Job) SetInputPaths(paths []string) error {
	data, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encode input paths: %w", err)
	}
	j.InputPathsJSON = string(data)
	return nil
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job failed with a classified error.
func (j *Job) SetFailed(kind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// OutputRecord describes one finished artifact available for download.
type OutputRecord struct {
	ID        int64
	SessionID string
	GroupID   string
	Filename  string
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Queued    int
	Active    int
	Failed    int
	Completed int
}
