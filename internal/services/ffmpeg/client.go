package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressFunc receives the monotonically increasing elapsed media time the
// concatenation subprocess has processed so far.
type ProgressFunc func(elapsed time.Duration)

// Client defines the concatenation behaviour the pipeline depends on.
type Client interface {
	// Concat losslessly joins inputs into output in the exact order
	// given, reporting elapsed media time through progress.
	Concat(ctx context.Context, inputs []string, output string, progress ProgressFunc) error
	// Duration reports the media duration of a single file.
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithProbeBinary overrides the ffprobe binary name.
func WithProbeBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.probeBinary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line tools.
type CLI struct {
	binary      string
	probeBinary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", probeBinary: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// diagTailLimit bounds the diagnostics excerpt carried in failure errors.
const diagTailLimit = 2048

// Concat runs the concat demuxer in stream-copy mode. The manifest is
// removed on every exit path. Timestamps are shifted to zero so chapters
// with misaligned start offsets join cleanly.
func (c *CLI) Concat(ctx context.Context, inputs []string, output string, progress ProgressFunc) error {
	if len(inputs) == 0 {
		return errors.New("no input files")
	}
	if strings.TrimSpace(output) == "" {
		return errors.New("output path required")
	}

	manifest, err := writeManifest(filepath.Dir(output), inputs)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(manifest)
	}()

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		output,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	var (
		tail    diagTail
		last    time.Duration
		scanner = bufio.NewScanner(stdout)
	)
	scanner.Split(scanStatsLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.append(line)
		elapsed, ok := parseElapsed(line)
		if !ok || elapsed <= last {
			continue
		}
		last = elapsed
		if progress != nil {
			progress(elapsed)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read %s output: %w", c.binary, err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s exited: %w: %s", c.binary, err, tail.String())
	}
	return nil
}

// Duration invokes ffprobe for the container duration of path.
func (c *CLI) Duration(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	}
	cmd := commandContext(ctx, c.probeBinary, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	value := strings.TrimSpace(string(out))
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: unparsable duration %q", path, value)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// scanStatsLines splits on both \n and \r since ffmpeg rewrites its stats
// line with carriage returns.
func scanStatsLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// diagTail keeps the most recent diagnostics within diagTailLimit bytes.
type diagTail struct {
	lines []string
	size  int
}

func (t *diagTail) append(line string) {
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	for t.size > diagTailLimit && len(t.lines) > 1 {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

func (t *diagTail) String() string {
	return strings.Join(t.lines, "\n")
}

var _ Client = (*CLI)(nil)
