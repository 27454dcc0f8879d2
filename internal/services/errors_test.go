package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	underlying := errors.New("open /x/y: no such file")
	err := Wrap(ErrInputMissing, "concat", "verify inputs", "GX010150.MP4", underlying)

	if !errors.Is(err, ErrInputMissing) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("cause lost: %v", err)
	}
	if !strings.Contains(err.Error(), "concat: verify inputs: GX010150.MP4") {
		t.Fatalf("detail missing: %v", err)
	}
}

func TestDetailsClassification(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Wrap(ErrValidation, "upload", "group", "no valid groups", nil), KindValidation},
		{Wrap(ErrInputMissing, "concat", "verify", "gone", nil), KindInputMissing},
		{Wrap(ErrConcatenation, "concat", "run", "exit 1", nil), KindConcatFailed},
		{Wrap(ErrUnavailable, "queue", "claim", "db closed", nil), KindUnavailable},
		{errors.New("plain"), KindInternal},
	}
	for _, tc := range cases {
		if got := Details(tc.err).Kind; got != tc.want {
			t.Fatalf("Details(%v).Kind = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestTruncateBoundsDiagnostics(t *testing.T) {
	long := strings.Repeat("x", 4096)
	got := Truncate(long)
	if len(got) > maxDetailLen {
		t.Fatalf("truncated detail still %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got[len(got)-8:])
	}
	if Truncate("short") != "short" {
		t.Fatal("short strings must pass through unchanged")
	}
}
