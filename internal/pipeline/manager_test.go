package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stitch/internal/config"
	"stitch/internal/gopro"
	"stitch/internal/queue"
	"stitch/internal/services/ffmpeg"
	"stitch/internal/storage"
	"stitch/internal/testsupport"
)

type fakeEngine struct {
	durations   map[string]time.Duration
	concatErr   error
	probeErr    error
	concatCalls int
}

func (f *fakeEngine) Concat(ctx context.Context, inputs []string, output string, progress ffmpeg.ProgressFunc) error {
	f.concatCalls++
	if f.concatErr != nil {
		return f.concatErr
	}
	if progress != nil {
		var elapsed time.Duration
		for _, input := range inputs {
			elapsed += f.durations[input]
			progress(elapsed)
		}
	}
	return os.WriteFile(output, []byte("joined"), 0o644)
}

func (f *fakeEngine) Duration(ctx context.Context, path string) (time.Duration, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	return f.durations[path], nil
}

type recordedEvent struct {
	kind    string
	groupID string
	percent float64
	output  string
	errKind string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingNotifier) Progress(sessionID, groupID string, jobID int64, stage string, percent float64, message string) {
	r.record(recordedEvent{kind: "progress", groupID: groupID, percent: percent})
}

func (r *recordingNotifier) Completed(sessionID, groupID string, jobID int64, output string) {
	r.record(recordedEvent{kind: "complete", groupID: groupID, percent: 100, output: output})
}

func (r *recordingNotifier) Failed(sessionID, groupID string, jobID int64, kind, message string) {
	r.record(recordedEvent{kind: "error", groupID: groupID, errKind: kind})
}

func (r *recordingNotifier) ResetGroup(string, string) {}

func (r *recordingNotifier) record(event recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func newTestManager(t *testing.T, engine *fakeEngine) (*Manager, *queue.Store, *config.Config, *recordingNotifier) {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.UploadDir = filepath.Join(base, "uploads")
	cfg.OutputDir = filepath.Join(base, "outputs")
	cfg.LogDir = filepath.Join(base, "logs")

	store, err := queue.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	notifier := &recordingNotifier{}
	manager := NewManager(&cfg, store, nil, WithEngine(engine), WithNotifier(notifier))
	return manager, store, &cfg, notifier
}

func writeChapters(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, 2048)
		paths = append(paths, path)
	}
	return paths
}

func submitGroup(t *testing.T, manager *Manager, sessionID string, paths []string) *queue.Job {
	t.Helper()
	files := make([]gopro.FileDescriptor, 0, len(paths))
	for _, path := range paths {
		files = append(files, gopro.FileDescriptor{
			OriginalName: filepath.Base(path),
			StoredPath:   path,
		})
	}
	groups, err := gopro.Group(files)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	jobs, err := manager.Submit(context.Background(), sessionID, groups)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	return jobs[0]
}

func TestProcessCompletesJob(t *testing.T) {
	engine := &fakeEngine{durations: map[string]time.Duration{}}
	manager, store, cfg, notifier := newTestManager(t, engine)
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4", "GX020150.MP4")
	for _, path := range paths {
		engine.durations[path] = 30 * time.Second
	}
	job := submitGroup(t, manager, "s1", paths)

	claimed, err := store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if err := manager.process(ctx, manager.logger, claimed); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", got.Status, got.ErrorMessage)
	}
	if got.ProgressPercent != 100 {
		t.Errorf("progress = %.0f, want 100", got.ProgressPercent)
	}
	if got.OutputFile == "" {
		t.Fatal("output file not recorded on job")
	}

	layout := storage.NewLayout(cfg)
	artifact := filepath.Join(layout.SessionOutputDir("s1"), got.OutputFile)
	if _, err := os.Stat(artifact); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	partials, _ := filepath.Glob(filepath.Join(layout.SessionOutputDir("s1"), "*.partial.mp4"))
	if len(partials) != 0 {
		t.Errorf("partial artifacts left behind: %v", partials)
	}

	records, err := store.OutputsBySession(ctx, "s1")
	if err != nil || len(records) != 1 {
		t.Fatalf("outputs = %v, err %v", records, err)
	}
	if records[0].Filename != got.OutputFile {
		t.Errorf("recorded filename = %s, want %s", records[0].Filename, got.OutputFile)
	}

	events := notifier.snapshot()
	if len(events) == 0 || events[len(events)-1].kind != "complete" {
		t.Fatalf("events = %+v, want trailing completion", events)
	}
	last := -1.0
	for _, event := range events {
		if event.percent < last {
			t.Errorf("progress regressed: %.0f after %.0f", event.percent, last)
		}
		last = event.percent
	}
}

func TestProcessConcatProgressStaysInBand(t *testing.T) {
	engine := &fakeEngine{durations: map[string]time.Duration{}}
	manager, store, cfg, notifier := newTestManager(t, engine)
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4", "GX020150.MP4")
	for _, path := range paths {
		engine.durations[path] = 30 * time.Second
	}
	submitGroup(t, manager, "s1", paths)

	claimed, _ := store.ClaimQueued(ctx)
	if err := manager.process(ctx, manager.logger, claimed); err != nil {
		t.Fatalf("process: %v", err)
	}

	sawBand := false
	for _, event := range notifier.snapshot() {
		if event.kind != "progress" {
			continue
		}
		if event.percent > 30 && event.percent < 100 {
			sawBand = true
			if event.percent > 90 {
				t.Errorf("concat progress %.0f above band", event.percent)
			}
		}
	}
	if !sawBand {
		t.Error("no concat-band progress events observed")
	}
}

func TestProcessFailsOnMissingInput(t *testing.T) {
	engine := &fakeEngine{durations: map[string]time.Duration{}}
	manager, store, cfg, notifier := newTestManager(t, engine)
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4")
	job := submitGroup(t, manager, "s1", paths)
	if err := os.Remove(paths[0]); err != nil {
		t.Fatalf("remove chapter: %v", err)
	}

	claimed, _ := store.ClaimQueued(ctx)
	if err := manager.process(ctx, manager.logger, claimed); err == nil {
		t.Fatal("expected processing error")
	}

	got, _ := store.GetByID(ctx, job.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorKind != "input_missing" {
		t.Errorf("error kind = %q, want input_missing", got.ErrorKind)
	}
	if engine.concatCalls != 0 {
		t.Errorf("concat ran despite missing input")
	}

	events := notifier.snapshot()
	if len(events) == 0 || events[len(events)-1].kind != "error" {
		t.Fatalf("events = %+v, want trailing error", events)
	}
	if events[len(events)-1].errKind != "input_missing" {
		t.Errorf("event error kind = %s", events[len(events)-1].errKind)
	}
}

func TestProcessFailsOnConcatError(t *testing.T) {
	engine := &fakeEngine{
		durations: map[string]time.Duration{},
		concatErr: errors.New("moov atom not found"),
	}
	manager, store, cfg, _ := newTestManager(t, engine)
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4")
	job := submitGroup(t, manager, "s1", paths)

	claimed, _ := store.ClaimQueued(ctx)
	if err := manager.process(ctx, manager.logger, claimed); err == nil {
		t.Fatal("expected processing error")
	}

	got, _ := store.GetByID(ctx, job.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorKind != "concatenation_failed" {
		t.Errorf("error kind = %q, want concatenation_failed", got.ErrorKind)
	}
}

func TestProcessFallsBackWhenProbeFails(t *testing.T) {
	engine := &fakeEngine{
		durations: map[string]time.Duration{},
		probeErr:  errors.New("probe unavailable"),
	}
	manager, store, cfg, _ := newTestManager(t, engine)
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4")
	job := submitGroup(t, manager, "s1", paths)

	claimed, _ := store.ClaimQueued(ctx)
	if err := manager.process(ctx, manager.logger, claimed); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := store.GetByID(ctx, job.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestRetryFailedRequeues(t *testing.T) {
	engine := &fakeEngine{durations: map[string]time.Duration{}, concatErr: errors.New("boom")}
	manager, store, cfg, _ := newTestManager(t, engine)
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4")
	job := submitGroup(t, manager, "s1", paths)

	claimed, _ := store.ClaimQueued(ctx)
	_ = manager.process(ctx, manager.logger, claimed)

	retried, err := manager.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}

	engine.concatErr = nil
	claimed, err = store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("re-claim: %v %v", claimed, err)
	}
	if err := manager.process(ctx, manager.logger, claimed); err != nil {
		t.Fatalf("process retry: %v", err)
	}
	got, _ := store.GetByID(ctx, job.ID)
	if got.Status != queue.StatusCompleted {
		t.Errorf("status after retry = %s, want completed", got.Status)
	}
}

func TestStartStopProcessesQueue(t *testing.T) {
	engine := &fakeEngine{durations: map[string]time.Duration{}}
	manager, store, cfg, _ := newTestManager(t, engine)
	cfg.Workflow.QueuePollInterval = 1
	manager.pollInterval = 10 * time.Millisecond
	ctx := context.Background()

	paths := writeChapters(t, filepath.Join(cfg.UploadDir, "s1"), "GX010150.MP4")
	job := submitGroup(t, manager, "s1", paths)

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == queue.StatusCompleted {
			return
		}
		if got.Status == queue.StatusFailed {
			t.Fatalf("job failed: %s", got.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not complete before deadline")
}

func TestMapConcatProgress(t *testing.T) {
	if got := mapConcatProgress(2*time.Minute, time.Minute, 0); got != 60 {
		t.Errorf("midpoint = %.1f, want 60", got)
	}
	if got := mapConcatProgress(time.Minute, 2*time.Minute, 0); got != 90 {
		t.Errorf("overshoot = %.1f, want clamped to 90", got)
	}
	if got := mapConcatProgress(0, 0, time.Minute); got != 60 {
		t.Errorf("fallback at half-life = %.1f, want 60", got)
	}
	if got := mapConcatProgress(0, 0, 100*time.Hour); got >= 90 {
		t.Errorf("fallback = %.1f, must stay below 90", got)
	}
}
