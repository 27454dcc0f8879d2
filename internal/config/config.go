package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Workflow contains worker pool and queue timing configuration.
type Workflow struct {
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// FFmpeg contains configuration for the concatenation subprocess.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	ProbeBinary    string `toml:"probe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Storage contains retention policy for session upload/output roots.
type Storage struct {
	RetentionHours       int `toml:"retention_hours"`
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the daemon and CLI.
type Config struct {
	Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	FFmpeg   FFmpeg   `toml:"ffmpeg"`
	Storage  Storage  `toml:"storage"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/stitch/config.toml"
}

// Load reads configuration from path (or the default location when empty),
// applies environment overrides, normalizes, and validates. The resolved
// path is returned alongside the config. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (*Config, string, error) {
	// A .env next to the working directory feeds the same overrides used
	// in container deployments. Absence is fine.
	_ = godotenv.Load()

	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// fall through to defaults
	default:
		return nil, resolved, fmt.Errorf("read %s: %w", resolved, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.normalize(); err != nil {
		return nil, resolved, err
	}
	if err := cfg.validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := lookupEnv("STITCH_UPLOAD_DIR"); ok {
		c.UploadDir = v
	}
	if v, ok := lookupEnv("STITCH_OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := lookupEnv("STITCH_LOG_DIR"); ok {
		c.LogDir = v
	}
	if v, ok := lookupEnv("STITCH_API_BIND"); ok {
		c.APIBind = v
	}
	if v, ok := lookupEnv("STITCH_FFMPEG"); ok {
		c.FFmpeg.Binary = v
	}
	if v, ok := lookupEnvInt("MAX_CONCURRENT_JOBS"); ok {
		c.Workflow.MaxConcurrentJobs = v
	}
	if v, ok := lookupEnvInt("FILE_RETENTION_HOURS"); ok {
		c.Storage.RetentionHours = v
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func lookupEnvInt(key string) (int, bool) {
	raw, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// EnsureDirectories creates the configured roots when absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.UploadDir, c.OutputDir, c.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the annotated sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	resolved, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	return os.WriteFile(resolved, []byte(sampleConfig), 0o644)
}
