package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"stitch/internal/api"
	"stitch/internal/queue"
	"stitch/internal/testsupport"
)

func startTestDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(), testsupport.WithWorkers(1))
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, "http://" + d.api.listener.Addr().String()
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &body)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func uploadFiles(t *testing.T, base, sessionID string, names ...string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(part, "chapter data for "+name); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(
		fmt.Sprintf("%s/api/sessions/%s/uploads", base, sessionID),
		writer.FormDataContentType(),
		&body,
	)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestUploadProcessDownloadFlow(t *testing.T) {
	_, base := startTestDaemon(t)

	resp := postJSON(t, base+"/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	session := decodeBody[api.SessionResponse](t, resp)
	if session.SessionID == "" {
		t.Fatal("empty session id")
	}

	resp = uploadFiles(t, base, session.SessionID, "GX020150.MP4", "GX010150.MP4", "GX010150.LRV")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	upload := decodeBody[api.UploadResponse](t, resp)
	if len(upload.Groups) != 1 {
		t.Fatalf("groups = %+v, want 1", upload.Groups)
	}
	if upload.Groups[0].GroupID != "gx0150" || len(upload.Groups[0].Chapters) != 2 {
		t.Fatalf("group = %+v", upload.Groups[0])
	}
	if len(upload.Ignored) != 1 || upload.Ignored[0] != "GX010150.LRV" {
		t.Errorf("ignored = %v, want the proxy file", upload.Ignored)
	}

	resp = postJSON(t, fmt.Sprintf("%s/api/sessions/%s/process", base, session.SessionID), api.ProcessRequest{})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("process status = %d", resp.StatusCode)
	}
	process := decodeBody[api.ProcessResponse](t, resp)
	if len(process.Jobs) != 1 || process.Jobs[0].Status != "queued" {
		t.Fatalf("jobs = %+v", process.Jobs)
	}

	var outputs api.OutputListResponse
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		jobsResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/jobs", base, session.SessionID))
		if err != nil {
			t.Fatalf("jobs: %v", err)
		}
		jobs := decodeBody[api.JobListResponse](t, jobsResp)
		if len(jobs.Jobs) == 1 && jobs.Jobs[0].Status == "failed" {
			t.Fatalf("job failed: %s", jobs.Jobs[0].ErrorMessage)
		}
		if len(jobs.Jobs) == 1 && jobs.Jobs[0].Status == "completed" {
			outResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/outputs", base, session.SessionID))
			if err != nil {
				t.Fatalf("outputs: %v", err)
			}
			outputs = decodeBody[api.OutputListResponse](t, outResp)
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if len(outputs.Outputs) != 1 {
		t.Fatalf("outputs = %+v, want 1", outputs.Outputs)
	}
	if !strings.HasPrefix(outputs.Outputs[0].Filename, "gx0150_") {
		t.Errorf("output name = %s", outputs.Outputs[0].Filename)
	}

	dlResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/outputs/%s", base, session.SessionID, outputs.Outputs[0].Filename))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dlResp.StatusCode)
	}
	data, _ := io.ReadAll(dlResp.Body)
	if len(data) == 0 {
		t.Error("empty artifact download")
	}

	missing, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/outputs/absent.mp4", base, session.SessionID))
	if err != nil {
		t.Fatalf("download missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing download status = %d, want 404", missing.StatusCode)
	}
}

func TestUploadValidation(t *testing.T) {
	_, base := startTestDaemon(t)

	session := decodeBody[api.SessionResponse](t, postJSON(t, base+"/api/sessions", nil))

	// Unsupported extension is rejected outright.
	resp := uploadFiles(t, base, session.SessionID, "notes.txt")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad extension status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()

	// Accepted extension but no chapter-grammar name: the batch stores
	// nothing groupable, so the upload itself fails validation.
	resp = uploadFiles(t, base, session.SessionID, "holiday_clip.mp4")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("ungroupable batch status = %d, want 422", resp.StatusCode)
	}
	var batchErr api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	resp.Body.Close()
	if batchErr.Kind != "validation" {
		t.Errorf("ungroupable batch kind = %q, want validation", batchErr.Kind)
	}

	// Processing a session with no recognizable groups fails validation.
	resp = postJSON(t, fmt.Sprintf("%s/api/sessions/%s/process", base, session.SessionID), api.ProcessRequest{})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty process status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown group selection fails validation.
	resp = uploadFiles(t, base, session.SessionID, "GX010001.MP4")
	resp.Body.Close()
	resp = postJSON(t, fmt.Sprintf("%s/api/sessions/%s/process", base, session.SessionID),
		api.ProcessRequest{GroupIDs: []string{"gx9999"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unknown group status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestQueueEndpoints(t *testing.T) {
	d, base := startTestDaemon(t)

	statusResp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	status := decodeBody[api.StatusResponse](t, statusResp)
	if !status.Running || status.Workers != 1 {
		t.Errorf("status = %+v", status)
	}

	resp := postJSON(t, base+"/api/queue/clear", api.ClearRequest{Scope: "bogus"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bogus clear scope status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, base+"/api/queue/clear", api.ClearRequest{Scope: "failed"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("clear status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Second daemon over the same queue must refuse to start.
	other, err := New(d.cfg, d.store, nil)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := other.Start(context.Background()); err == nil {
		other.Stop()
		t.Error("second daemon acquired the lock")
	}
}
