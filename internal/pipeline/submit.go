package pipeline

import (
	"context"
	"fmt"

	"stitch/internal/gopro"
	"stitch/internal/logging"
	"stitch/internal/queue"
	"stitch/internal/services"
)

// Submit enqueues one job per sequence group for a session. Groups are
// enqueued in the order given; the returned jobs carry their assigned ids.
func (m *Manager) Submit(ctx context.Context, sessionID string, groups []gopro.SequenceGroup) ([]*queue.Job, error) {
	if len(groups) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "submit", "no sequence groups to process", nil)
	}

	jobs := make([]*queue.Job, 0, len(groups))
	for _, group := range groups {
		job := &queue.Job{
			SessionID: sessionID,
			GroupID:   group.ID,
			Encoding:  string(group.Encoding),
			Sequence:  group.Sequence,
		}
		if err := job.SetInputPaths(group.InputPaths()); err != nil {
			return jobs, services.Wrap(services.ErrValidation, "pipeline", "submit",
				fmt.Sprintf("cannot encode inputs for group %s", group.ID), err)
		}
		m.notifier.ResetGroup(sessionID, group.ID)

		stored, err := m.store.Enqueue(ctx, job)
		if err != nil {
			return jobs, services.Wrap(services.ErrUnavailable, "pipeline", "submit",
				fmt.Sprintf("cannot enqueue group %s", group.ID), err)
		}
		jobs = append(jobs, stored)
		m.logger.Info("job enqueued",
			logging.Int64(logging.FieldJobID, stored.ID),
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldGroupID, group.ID),
			logging.Int("chapters", len(group.Chapters)))
	}
	return jobs, nil
}

// RetryFailed returns failed jobs to the queue and clears their event
// delivery guards so retries stream a fresh series.
func (m *Manager) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	var failed []*queue.Job
	if len(ids) == 0 {
		jobs, err := m.store.List(ctx, queue.StatusFailed)
		if err != nil {
			return 0, err
		}
		failed = jobs
	} else {
		for _, id := range ids {
			job, err := m.store.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			if job != nil && job.Status == queue.StatusFailed {
				failed = append(failed, job)
			}
		}
	}
	for _, job := range failed {
		m.notifier.ResetGroup(job.SessionID, job.GroupID)
	}
	return m.store.RetryFailed(ctx, ids...)
}

// Status summarizes pipeline state for the API and CLI.
type Status struct {
	Running bool
	Workers int
	Queue   queue.HealthSummary
}

// Status reports worker pool state plus aggregated queue counts.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	health, err := m.store.Health(ctx)
	if err != nil {
		return Status{}, err
	}
	workers := m.cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	return Status{
		Running: m.Running(),
		Workers: workers,
		Queue:   health,
	}, nil
}
