package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"stitch/internal/fileutil"
	"stitch/internal/logging"
	"stitch/internal/queue"
	"stitch/internal/services"
	"stitch/internal/storage"
)

// fallbackHalfLife shapes the progress curve when input durations cannot be
// probed: elapsed/(elapsed+halfLife) approaches 1 without ever reaching it.
const fallbackHalfLife = 60 * time.Second

func (m *Manager) process(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithSessionID(ctx, job.SessionID)
	ctx = services.WithGroupID(ctx, job.GroupID)
	logger = logging.WithContext(ctx, logger)

	logger.Info("processing job", logging.String(logging.FieldEventType, "job_started"))

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	err := m.execute(ctx, logger, job)
	switch {
	case err == nil:
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_completed"),
			logging.String("output", job.OutputFile))
		return nil
	case errors.Is(err, context.Canceled):
		m.requeueOnShutdown(job)
		return err
	default:
		m.fail(ctx, logger, job, err)
		return err
	}
}

func (m *Manager) execute(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	if err := m.checkpoint(ctx, job, "preparing", "reading job inputs", 10); err != nil {
		return err
	}

	inputs, err := job.InputPaths()
	if err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", "decode inputs", "stored input paths are corrupt", err)
	}
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "decode inputs", "job has no input files", nil)
	}
	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			return services.Wrap(services.ErrInputMissing, "pipeline", "verify inputs",
				fmt.Sprintf("chapter file %s is not readable", input), err)
		}
	}
	if err := m.checkpoint(ctx, job, "verifying", "chapter files verified", 20); err != nil {
		return err
	}

	if err := m.layout.EnsureSession(job.SessionID); err != nil {
		return services.Wrap(services.ErrUnavailable, "pipeline", "prepare output", "cannot create session output directory", err)
	}
	filename := storage.OutputFileName(job.GroupID, time.Now())
	outputPath, err := m.layout.OutputPath(job.SessionID, filename)
	if err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", "prepare output", "invalid output name", err)
	}
	if err := m.checkpoint(ctx, job, "preparing output", "output path prepared", 30); err != nil {
		return err
	}

	total := m.probeTotalDuration(ctx, logger, inputs)
	partial := partialPath(outputPath)
	if err := m.concat(ctx, job, inputs, partial, total); err != nil {
		_ = os.Remove(partial)
		if errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrConcatenation, "pipeline", "concat", "concatenation timed out", err)
		}
		return services.Wrap(services.ErrConcatenation, "pipeline", "concat", services.Truncate(err.Error()), err)
	}

	if err := fileutil.Rename(partial, outputPath); err != nil {
		return services.Wrap(services.ErrUnavailable, "pipeline", "finalize", "cannot move artifact into place", err)
	}
	var size int64
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}
	if _, err := m.store.RecordOutput(ctx, &queue.OutputRecord{
		SessionID: job.SessionID,
		GroupID:   job.GroupID,
		Filename:  filename,
		Path:      outputPath,
		SizeBytes: size,
	}); err != nil {
		return services.Wrap(services.ErrUnavailable, "pipeline", "finalize", "cannot record artifact", err)
	}

	job.OutputFile = filename
	job.Status = queue.StatusCompleted
	job.LastHeartbeat = nil
	job.SetProgress("completed", "concatenation complete", 100)
	if err := m.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrUnavailable, "pipeline", "finalize", "cannot persist completion", err)
	}
	m.notifier.Completed(job.SessionID, job.GroupID, job.ID, filename)
	return nil
}

func (m *Manager) concat(ctx context.Context, job *queue.Job, inputs []string, partial string, total time.Duration) error {
	runCtx := ctx
	if m.cfg.FFmpeg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.FFmpeg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	started := time.Now()
	lastStored := 30.0
	onProgress := func(elapsed time.Duration) {
		percent := mapConcatProgress(total, elapsed, time.Since(started))
		if percent <= job.ProgressPercent {
			return
		}
		job.SetProgress("concatenating", "joining chapters", percent)
		// Persist at whole-percent granularity to keep write volume down.
		if percent-lastStored >= 1 {
			if err := m.store.Update(runCtx, job); err == nil {
				lastStored = percent
			}
		}
		m.notifier.Progress(job.SessionID, job.GroupID, job.ID, "concatenating", percent, "")
	}

	return m.engine.Concat(runCtx, inputs, partial, onProgress)
}

// probeTotalDuration sums the media durations of all inputs. Zero means
// unknown; progress falls back to an elapsed-time curve.
func (m *Manager) probeTotalDuration(ctx context.Context, logger *slog.Logger, inputs []string) time.Duration {
	var total time.Duration
	for _, input := range inputs {
		duration, err := m.engine.Duration(ctx, input)
		if err != nil {
			logger.Warn("duration probe failed, using elapsed-time progress",
				logging.String("input", input),
				logging.Error(err))
			return 0
		}
		total += duration
	}
	return total
}

// mapConcatProgress maps concatenation progress into the 30..90 band.
func mapConcatProgress(total, elapsed, wallElapsed time.Duration) float64 {
	var frac float64
	if total > 0 {
		frac = float64(elapsed) / float64(total)
	} else {
		frac = float64(wallElapsed) / float64(wallElapsed+fallbackHalfLife)
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return 30 + 60*frac
}

func (m *Manager) checkpoint(ctx context.Context, job *queue.Job, stage, message string, percent float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job.SetProgress(stage, message, percent)
	if err := m.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrUnavailable, "pipeline", "checkpoint", "cannot persist progress", err)
	}
	m.notifier.Progress(job.SessionID, job.GroupID, job.ID, stage, percent, message)
	return nil
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error) {
	details := services.Details(jobErr)
	job.SetFailed(string(details.Kind), details.Message)
	if err := m.store.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("cannot persist job failure", logging.Error(err))
	}
	m.notifier.Failed(job.SessionID, job.GroupID, job.ID, string(details.Kind), details.Message)
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String("error_kind", string(details.Kind)),
		logging.Error(jobErr))
}

// requeueOnShutdown puts an interrupted job back in line so the next start
// picks it up from scratch.
func (m *Manager) requeueOnShutdown(job *queue.Job) {
	job.Status = queue.StatusQueued
	job.LastHeartbeat = nil
	job.SetProgress("", "", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Update(ctx, job); err != nil {
		m.logger.Warn("cannot requeue interrupted job",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

func partialPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, ".mp4") + ".partial.mp4"
}
