package ffmpeg

import (
	"fmt"
	"os"
	"strings"
)

// writeManifest creates a concat-demuxer manifest in dir listing inputs in
// the exact supplied order. The caller must remove the returned path; on
// error no file is left behind, including when writing fails partway.
func writeManifest(dir string, inputs []string) (string, error) {
	file, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}
	path := file.Name()

	var builder strings.Builder
	for _, input := range inputs {
		builder.WriteString("file '")
		builder.WriteString(escapeManifestPath(input))
		builder.WriteString("'\n")
	}
	if _, err := file.WriteString(builder.String()); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close manifest: %w", err)
	}
	return path, nil
}

// escapeManifestPath embeds arbitrary path bytes inside a single-quoted
// concat-demuxer field. The demuxer has no escape sequence inside quotes, so
// a literal quote is spelled by closing the field, emitting an escaped quote,
// and reopening it.
func escapeManifestPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
