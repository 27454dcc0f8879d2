package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"stitch/internal/gopro"
	"stitch/internal/logging"
	"stitch/internal/notify"
	"stitch/internal/queue"
	"stitch/internal/services"
	"stitch/internal/storage"
)

// uploadExtensions lists the file types accepted at the upload boundary.
var uploadExtensions = map[string]struct{}{
	".mp4": {},
	".lrv": {},
	".thm": {},
}

// CreateSession mints a session id and prepares its directories.
func (d *Daemon) CreateSession() (string, error) {
	sessionID := storage.NewSessionID()
	if err := d.layout.EnsureSession(sessionID); err != nil {
		return "", services.Wrap(services.ErrUnavailable, "daemon", "create session", "cannot prepare session directories", err)
	}
	d.logger.Info("session created", logging.String(logging.FieldSessionID, sessionID))
	return sessionID, nil
}

// SaveUpload validates and stores one uploaded file into a session.
func (d *Daemon) SaveUpload(sessionID, name string, src io.Reader) (int64, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := uploadExtensions[ext]; !ok {
		return 0, services.Wrap(services.ErrValidation, "daemon", "upload",
			fmt.Sprintf("unsupported file extension %q", ext), nil)
	}
	_, size, err := d.layout.SaveUpload(sessionID, name, src)
	if err != nil {
		if errors.Is(err, storage.ErrUnsafeName) {
			return 0, services.Wrap(services.ErrValidation, "daemon", "upload", err.Error(), err)
		}
		return 0, services.Wrap(services.ErrUnavailable, "daemon", "upload", "cannot store upload", err)
	}
	return size, nil
}

// GroupSession parses and groups the files stored for a session. Ignored
// holds the names skipped as proxies, thumbnails, or unrecognized.
func (d *Daemon) GroupSession(sessionID string) ([]gopro.SequenceGroup, []string, error) {
	names, err := d.layout.ListUploads(sessionID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrUnavailable, "daemon", "group", "cannot list session uploads", err)
	}

	dir := d.layout.SessionUploadDir(sessionID)
	files := make([]gopro.FileDescriptor, 0, len(names))
	var ignored []string
	for _, name := range names {
		parsed, ok := gopro.Parse(name)
		if !ok || parsed.Extension != gopro.ExtVideo {
			ignored = append(ignored, name)
			continue
		}
		path := filepath.Join(dir, name)
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		files = append(files, gopro.FileDescriptor{
			OriginalName: name,
			StoredPath:   path,
			SizeBytes:    size,
		})
	}

	groups, err := gopro.Group(files)
	if err != nil {
		var dup *gopro.DuplicateChapterError
		if errors.As(err, &dup) {
			return nil, ignored, services.Wrap(services.ErrValidation, "daemon", "group", dup.Error(), err)
		}
		return nil, ignored, err
	}
	return groups, ignored, nil
}

// Process enqueues jobs for the selected groups of a session. An empty
// selection processes every recognized group.
func (d *Daemon) Process(ctx context.Context, sessionID string, groupIDs []string) ([]*queue.Job, error) {
	groups, _, err := d.GroupSession(sessionID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, services.Wrap(services.ErrValidation, "daemon", "process", "session has no recognizable sequence groups", nil)
	}

	if len(groupIDs) > 0 {
		byID := make(map[string]gopro.SequenceGroup, len(groups))
		for _, group := range groups {
			byID[group.ID] = group
		}
		selected := make([]gopro.SequenceGroup, 0, len(groupIDs))
		for _, id := range groupIDs {
			group, ok := byID[id]
			if !ok {
				return nil, services.Wrap(services.ErrValidation, "daemon", "process",
					fmt.Sprintf("unknown group id %q", id), nil)
			}
			selected = append(selected, group)
		}
		groups = selected
	}

	return d.pipeline.Submit(ctx, sessionID, groups)
}

// Subscribe attaches a consumer to a session's event stream.
func (d *Daemon) Subscribe(sessionID string) *notify.Subscription {
	return d.hub.Subscribe(sessionID)
}

// ResolveOutput maps a session/filename pair to an artifact on disk.
func (d *Daemon) ResolveOutput(sessionID, filename string) (string, error) {
	return d.layout.ResolveOutput(sessionID, filename)
}

// ListQueue returns jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// RetryFailed requeues failed jobs (optionally a subset).
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.pipeline.RetryFailed(ctx, ids...)
}

// ClearQueue removes jobs by scope: all, completed, or failed.
func (d *Daemon) ClearQueue(ctx context.Context, scope string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "", "all":
		return d.store.Clear(ctx)
	case "completed":
		return d.store.ClearCompleted(ctx)
	case "failed":
		return d.store.ClearFailed(ctx)
	default:
		return 0, services.Wrap(services.ErrValidation, "daemon", "clear",
			fmt.Sprintf("unknown clear scope %q", scope), nil)
	}
}
