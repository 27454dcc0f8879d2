package api

import (
	"time"

	"stitch/internal/gopro"
	"stitch/internal/queue"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:        job.ID,
		SessionID: job.SessionID,
		GroupID:   job.GroupID,
		Encoding:  job.Encoding,
		Sequence:  job.Sequence,
		Status:    string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		OutputFile:   job.OutputFile,
	}
	view.CreatedAt = FormatTime(job.CreatedAt)
	view.UpdatedAt = FormatTime(job.UpdatedAt)
	return view
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromGroup converts a sequence group to its API representation.
func FromGroup(group gopro.SequenceGroup) GroupView {
	chapters := make([]ChapterView, 0, len(group.Chapters))
	for _, chapter := range group.Chapters {
		chapters = append(chapters, ChapterView{
			Number:    chapter.Number,
			Name:      chapter.File.OriginalName,
			SizeBytes: chapter.File.SizeBytes,
		})
	}
	return GroupView{
		GroupID:  group.ID,
		Encoding: string(group.Encoding),
		Sequence: group.Sequence,
		Chapters: chapters,
	}
}

// FromGroups converts sequence groups into API DTOs.
func FromGroups(groups []gopro.SequenceGroup) []GroupView {
	if len(groups) == 0 {
		return nil
	}
	out := make([]GroupView, 0, len(groups))
	for _, group := range groups {
		out = append(out, FromGroup(group))
	}
	return out
}

// FromOutput converts an artifact record to its API representation.
func FromOutput(record *queue.OutputRecord) OutputView {
	if record == nil {
		return OutputView{}
	}
	return OutputView{
		SessionID: record.SessionID,
		GroupID:   record.GroupID,
		Filename:  record.Filename,
		SizeBytes: record.SizeBytes,
		CreatedAt: FormatTime(record.CreatedAt),
	}
}

// FromOutputs converts artifact records into API DTOs.
func FromOutputs(records []*queue.OutputRecord) []OutputView {
	if len(records) == 0 {
		return nil
	}
	out := make([]OutputView, 0, len(records))
	for _, record := range records {
		out = append(out, FromOutput(record))
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
