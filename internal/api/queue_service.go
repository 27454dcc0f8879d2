package api

import (
	"context"

	"stitch/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API
// queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	JobsBySession(ctx context.Context, sessionID string) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	OutputsBySession(ctx context.Context, sessionID string) ([]*queue.OutputRecord, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns jobs filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]JobView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// SessionJobs returns the jobs submitted for one session.
func (s *QueueService) SessionJobs(ctx context.Context, sessionID string) ([]JobView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.JobsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// SessionOutputs returns the artifacts recorded for one session.
func (s *QueueService) SessionOutputs(ctx context.Context, sessionID string) ([]OutputView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.OutputsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return FromOutputs(records), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single job.
func (s *QueueService) Describe(ctx context.Context, id int64) (*JobView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	view := FromJob(job)
	return &view, nil
}
