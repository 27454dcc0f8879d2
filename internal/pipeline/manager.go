package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stitch/internal/config"
	"stitch/internal/logging"
	"stitch/internal/notify"
	"stitch/internal/queue"
	"stitch/internal/services/ffmpeg"
	"stitch/internal/storage"
)

// Manager owns the worker pool processing queued concatenation jobs.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	layout       *storage.Layout
	engine       ffmpeg.Client
	notifier     notify.Publisher
	logger       *slog.Logger
	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithEngine overrides the concatenation engine (used in tests).
func WithEngine(engine ffmpeg.Client) ManagerOption {
	return func(m *Manager) {
		if engine != nil {
			m.engine = engine
		}
	}
}

// WithNotifier overrides the event publisher.
func WithNotifier(notifier notify.Publisher) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// NewManager constructs a pipeline manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		layout:       storage.NewLayout(cfg),
		engine:       ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpeg.Binary), ffmpeg.WithProbeBinary(cfg.FFmpeg.ProbeBinary)),
		notifier:     notify.Noop{},
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.heartbeat = NewHeartbeatMonitor(
		store,
		m.logger,
		time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
		time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
	)
	return m
}

// Start launches the worker pool. Jobs left active by a previous run are
// reclaimed before workers begin claiming.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	m.wg.Add(workers)
	m.mu.Unlock()

	if err := m.heartbeat.ReclaimStale(runCtx); err != nil {
		m.logger.Warn("startup reclaim failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"))
	}

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx); err != nil {
			logger.Warn("reclaim stale jobs failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"))
		}

		job, err := m.store.ClaimQueued(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to claim queued job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"))
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.process(ctx, logger, job); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		wait = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
