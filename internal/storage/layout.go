// Package storage owns the on-disk session layout: one directory per upload
// session under the upload root, a sibling directory per session under the
// output root, and deterministic artifact naming.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"stitch/internal/config"
)

// outputTimeLayout is the UTC timestamp embedded in artifact filenames.
const outputTimeLayout = "20060102T150405"

// ErrUnsafeName rejects upload or download names that would escape their
// session directory.
var ErrUnsafeName = errors.New("unsafe file name")

// Layout resolves session-scoped paths beneath the configured roots.
type Layout struct {
	uploadRoot string
	outputRoot string
}

// NewLayout builds a Layout from configuration.
func NewLayout(cfg *config.Config) *Layout {
	return &Layout{uploadRoot: cfg.UploadDir, outputRoot: cfg.OutputDir}
}

// NewSessionID mints a fresh upload session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionUploadDir returns the directory holding a session's uploaded
// chapter files.
func (l *Layout) SessionUploadDir(sessionID string) string {
	return filepath.Join(l.uploadRoot, sessionID)
}

// SessionOutputDir returns the directory holding a session's concatenated
// artifacts.
func (l *Layout) SessionOutputDir(sessionID string) string {
	return filepath.Join(l.outputRoot, sessionID)
}

// EnsureSession creates both session directories.
func (l *Layout) EnsureSession(sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	for _, dir := range []string{l.SessionUploadDir(sessionID), l.SessionOutputDir(sessionID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	return nil
}

// SaveUpload streams one uploaded file into the session upload directory
// under its client-supplied base name. Returns the stored path and size.
func (l *Layout) SaveUpload(sessionID, originalName string, src io.Reader) (string, int64, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", 0, err
	}
	name, err := SanitizeName(originalName)
	if err != nil {
		return "", 0, err
	}

	dir := l.SessionUploadDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create session directory: %w", err)
	}
	path := filepath.Join(dir, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create upload %s: %w", name, err)
	}
	written, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close upload %s: %w", name, err)
	}
	return path, written, nil
}

// ListUploads returns the stored file names in a session's upload directory.
func (l *Layout) ListUploads(sessionID string) ([]string, error) {
	entries, err := os.ReadDir(l.SessionUploadDir(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// OutputFileName derives the deterministic artifact name for a group
// finishing at the given instant.
func OutputFileName(groupID string, finished time.Time) string {
	return fmt.Sprintf("%s_%s.mp4", groupID, finished.UTC().Format(outputTimeLayout))
}

// OutputPath returns the final artifact path for a session.
func (l *Layout) OutputPath(sessionID, filename string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	name, err := SanitizeName(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.SessionOutputDir(sessionID), name), nil
}

// ResolveOutput maps a session and filename to an existing artifact path,
// refusing names that would traverse outside the session directory.
func (l *Layout) ResolveOutput(sessionID, filename string) (string, error) {
	path, err := l.OutputPath(sessionID, filename)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrUnsafeName, filename)
	}
	return path, nil
}

// SanitizeName reduces a client-supplied name to a safe base name.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsafeName)
	}
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	if strings.ContainsAny(base, "/\\") || strings.ContainsRune(base, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return base, nil
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: empty session id", ErrUnsafeName)
	}
	if sessionID == "." || sessionID == ".." || sessionID != filepath.Base(filepath.Clean(sessionID)) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, sessionID)
	}
	return nil
}
