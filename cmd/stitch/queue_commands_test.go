package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stitch/internal/api"
)

func runCLI(t *testing.T, server *httptest.Server, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cliArgs := append([]string{"--api", strings.TrimPrefix(server.URL, "http://")}, args...)
	cmd.SetArgs(cliArgs)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output %q missing %q", haystack, needle)
	}
}

func newFakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.StatusResponse{
			Running: true,
			PID:     4242,
			Workers: 2,
			QueueStats: map[string]int{
				"queued": 1,
				"failed": 2,
			},
		})
	})
	mux.HandleFunc("/api/queue", func(w http.ResponseWriter, r *http.Request) {
		jobs := []api.JobView{
			{ID: 1, SessionID: "sess-a", GroupID: "gx0150", Status: "queued", Progress: api.JobProgress{Percent: 0}},
			{ID: 2, SessionID: "sess-b", GroupID: "gh0007", Status: "failed", Progress: api.JobProgress{Percent: 45}},
		}
		if statuses := r.URL.Query()["status"]; len(statuses) == 1 {
			filtered := jobs[:0]
			for _, job := range jobs {
				if job.Status == statuses[0] {
					filtered = append(filtered, job)
				}
			}
			jobs = filtered
		}
		json.NewEncoder(w).Encode(api.JobListResponse{Jobs: jobs})
	})
	mux.HandleFunc("/api/queue/retry", func(w http.ResponseWriter, r *http.Request) {
		var req api.RetryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		affected := int64(len(req.JobIDs))
		if affected == 0 {
			affected = 2
		}
		json.NewEncoder(w).Encode(api.ActionResponse{Affected: affected})
	})
	mux.HandleFunc("/api/queue/clear", func(w http.ResponseWriter, r *http.Request) {
		var req api.ClearRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Scope != "all" && req.Scope != "completed" && req.Scope != "failed" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unknown clear scope", Kind: "validation"})
			return
		}
		json.NewEncoder(w).Encode(api.ActionResponse{Affected: 3})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStatusCommand(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running:  yes")
	requireContains(t, out, "Workers:  2")
	requireContains(t, out, "queued")
	requireContains(t, out, "failed")
}

func TestQueueListCommand(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "gx0150")
	requireContains(t, out, "gh0007")
	requireContains(t, out, "45%")

	out, err = runCLI(t, server, "queue", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("queue list filtered: %v", err)
	}
	requireContains(t, out, "gh0007")
	if strings.Contains(out, "gx0150") {
		t.Fatalf("filtered output still contains queued job: %q", out)
	}
}

func TestQueueRetryCommand(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 2 failed jobs")

	out, err = runCLI(t, server, "queue", "retry", "7")
	if err != nil {
		t.Fatalf("queue retry one: %v", err)
	}
	requireContains(t, out, "Retried 1 failed jobs")

	if _, err := runCLI(t, server, "queue", "retry", "not-a-number"); err == nil {
		t.Fatal("expected error for bad job id")
	}
}

func TestQueueClearCommand(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "queue", "clear", "--failed")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 3 failed jobs")

	if _, err := runCLI(t, server, "queue", "clear", "--failed", "--completed"); err == nil {
		t.Fatal("expected error for conflicting flags")
	}
}
