package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"stitch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.UploadDir = filepath.Join(base, "uploads")
	cfgVal.OutputDir = filepath.Join(base, "outputs")
	cfgVal.LogDir = filepath.Join(base, "logs")
	cfgVal.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkers sets the worker pool size on the test config.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxConcurrentJobs = count
	}
}

// WithStubbedFFmpeg writes stub ffmpeg/ffprobe executables into a bin dir,
// points the config at them, and prepends the dir to PATH. The ffmpeg stub
// emits progress markers and copies its last argument into existence; the
// ffprobe stub reports a fixed duration.
func WithStubbedFFmpeg() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}

		ffmpeg := filepath.Join(binDir, "ffmpeg")
		ffmpegScript := `#!/bin/sh
printf 'frame=1 time=00:00:05.00 speed=4x\r' >&2
printf 'frame=2 time=00:00:10.00 speed=4x\n' >&2
for arg; do out="$arg"; done
echo joined > "$out"
`
		if err := os.WriteFile(ffmpeg, []byte(ffmpegScript), 0o755); err != nil {
			b.t.Fatalf("write stub ffmpeg: %v", err)
		}

		ffprobe := filepath.Join(binDir, "ffprobe")
		if err := os.WriteFile(ffprobe, []byte("#!/bin/sh\necho 10.0\n"), 0o755); err != nil {
			b.t.Fatalf("write stub ffprobe: %v", err)
		}

		b.cfg.FFmpeg.Binary = ffmpeg
		b.cfg.FFmpeg.ProbeBinary = ffprobe

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.UploadDir)
}
