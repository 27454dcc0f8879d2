package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stitch/internal/storage"
)

func TestSweepRemovesOnlyExpiredSessions(t *testing.T) {
	layout, cfg := newTestLayout(t)
	cfg.Storage.RetentionHours = 24
	sweeper := storage.NewSweeper(cfg, nil)

	for _, id := range []string{"old-session", "fresh-session"} {
		if err := layout.EnsureSession(id); err != nil {
			t.Fatalf("ensure session: %v", err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{layout.SessionUploadDir("old-session"), layout.SessionOutputDir("old-session")} {
		if err := os.Chtimes(dir, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := sweeper.SweepNow()
	if removed != 2 {
		t.Errorf("removed = %d, want 2 (upload and output dirs)", removed)
	}
	if _, err := os.Stat(layout.SessionUploadDir("old-session")); !os.IsNotExist(err) {
		t.Error("expired upload dir survived sweep")
	}
	if _, err := os.Stat(layout.SessionUploadDir("fresh-session")); err != nil {
		t.Errorf("fresh session removed: %v", err)
	}
}

func TestSweepDisabledByZeroRetention(t *testing.T) {
	layout, cfg := newTestLayout(t)
	cfg.Storage.RetentionHours = 0
	sweeper := storage.NewSweeper(cfg, nil)

	if err := layout.EnsureSession("s1"); err != nil {
		t.Fatalf("ensure session: %v", err)
	}
	stale := time.Now().Add(-1000 * time.Hour)
	if err := os.Chtimes(layout.SessionUploadDir("s1"), stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if removed := sweeper.SweepNow(); removed != 0 {
		t.Errorf("removed = %d with retention disabled", removed)
	}
	if _, err := os.Stat(layout.SessionUploadDir("s1")); err != nil {
		t.Errorf("session removed despite disabled retention: %v", err)
	}
}

func TestSweepIgnoresPlainFiles(t *testing.T) {
	_, cfg := newTestLayout(t)
	cfg.Storage.RetentionHours = 1
	sweeper := storage.NewSweeper(cfg, nil)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(cfg.UploadDir, "stray.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(file, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if removed := sweeper.SweepNow(); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("plain file removed: %v", err)
	}
}
