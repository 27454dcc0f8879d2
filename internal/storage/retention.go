package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stitch/internal/config"
	"stitch/internal/logging"
)

// Sweeper periodically removes session directories older than the retention
// window. A retention of zero disables sweeping entirely.
type Sweeper struct {
	layout    *Layout
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewSweeper builds a sweeper from configuration.
func NewSweeper(cfg *config.Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		layout:    NewLayout(cfg),
		retention: time.Duration(cfg.Storage.RetentionHours) * time.Hour,
		interval:  time.Duration(cfg.Storage.SweepIntervalMinutes) * time.Minute,
		logger:    logging.NewComponentLogger(logger, "retention"),
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.retention <= 0 {
		s.logger.Info("retention sweeping disabled")
		return
	}
	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, root := range []string{s.layout.uploadRoot, s.layout.outputRoot} {
		if ctx.Err() != nil {
			return
		}
		removed += s.sweepRoot(root, cutoff)
	}
	if removed > 0 {
		s.logger.Info("removed expired session directories", logging.Int("removed", removed))
	}
}

// SweepNow runs one sweep immediately and reports how many session
// directories were removed.
func (s *Sweeper) SweepNow() int {
	cutoff := s.now().Add(-s.retention)
	if s.retention <= 0 {
		return 0
	}
	return s.sweepRoot(s.layout.uploadRoot, cutoff) + s.sweepRoot(s.layout.outputRoot, cutoff)
}

func (s *Sweeper) sweepRoot(root string, cutoff time.Time) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("read retention root", logging.String("root", root), logging.Error(err))
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("remove expired session", logging.String("path", path), logging.Error(err))
			continue
		}
		removed++
	}
	return removed
}
