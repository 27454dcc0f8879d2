package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parent directory) filled with size bytes of
// filler so tests can stage chapter-sized inputs. Sizes below one byte are
// bumped to one so the file always exists with content.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size < 1 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}

	filler := bytes.Repeat([]byte{'g'}, 4096)
	for written := int64(0); written < size; {
		chunk := int64(len(filler))
		if size-written < chunk {
			chunk = size - written
		}
		n, err := f.Write(filler[:chunk])
		if err != nil {
			f.Close()
			t.Fatalf("write %s: %v", path, err)
		}
		written += int64(n)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}
