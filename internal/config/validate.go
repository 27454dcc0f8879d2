package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) validate() error {
	var problems []string
	if strings.TrimSpace(c.UploadDir) == "" {
		problems = append(problems, "paths.upload_dir must be set")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "paths.output_dir must be set")
	}
	if c.UploadDir != "" && c.UploadDir == c.OutputDir {
		problems = append(problems, "paths.upload_dir and paths.output_dir must differ")
	}
	if c.Workflow.MaxConcurrentJobs < 1 {
		problems = append(problems, "workflow.max_concurrent_jobs must be at least 1")
	}
	if c.FFmpeg.TimeoutSeconds < 0 {
		problems = append(problems, "ffmpeg.timeout_seconds must not be negative")
	}
	if c.Storage.RetentionHours < 0 {
		problems = append(problems, "storage.retention_hours must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
