package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"stitch/internal/api"
	"stitch/internal/config"
	"stitch/internal/logging"
	"stitch/internal/queue"
	"stitch/internal/services"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing; larger
// file parts spill to disk.
const maxUploadMemory = 32 << 20

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
	}

	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	router := mux.NewRouter()
	root := router.PathPrefix("/api").Subrouter()

	root.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	root.HandleFunc("/sessions/{id}/uploads", s.handleUploads).Methods(http.MethodPost)
	root.HandleFunc("/sessions/{id}/process", s.handleProcess).Methods(http.MethodPost)
	root.HandleFunc("/sessions/{id}/jobs", s.handleJobs).Methods(http.MethodGet)
	root.HandleFunc("/sessions/{id}/outputs", s.handleOutputs).Methods(http.MethodGet)
	root.HandleFunc("/sessions/{id}/outputs/{filename}", s.handleDownload).Methods(http.MethodGet)
	root.HandleFunc("/sessions/{id}/events", s.handleEvents).Methods(http.MethodGet)
	root.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	root.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	root.HandleFunc("/queue/retry", s.handleRetry).Methods(http.MethodPost)
	root.HandleFunc("/queue/clear", s.handleClear).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(router)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.daemon.CreateSession()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{SessionID: sessionID})
}

func (s *apiServer) handleUploads(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart payload", "validation")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var stored int
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			part, err := header.Open()
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "cannot read upload part", "validation")
				return
			}
			_, saveErr := s.daemon.SaveUpload(sessionID, header.Filename, part)
			_ = part.Close()
			if saveErr != nil {
				s.writeServiceError(w, saveErr)
				return
			}
			stored++
		}
	}
	if stored == 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "no files in upload", "validation")
		return
	}

	groups, ignored, err := s.daemon.GroupSession(sessionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if len(groups) == 0 {
		s.writeServiceError(w, services.Wrap(services.ErrValidation, "daemon", "upload",
			"upload batch contains no recognizable sequence groups", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		SessionID: sessionID,
		Groups:    api.FromGroups(groups),
		Ignored:   ignored,
	})
}

func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req api.ProcessRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", "validation")
			return
		}
	}

	jobs, err := s.daemon.Process(r.Context(), sessionID, req.GroupIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.ProcessResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.queueSvc.SessionJobs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := s.queueSvc.SessionOutputs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	s.writeJSON(w, http.StatusOK, api.OutputListResponse{Outputs: outputs})
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, err := s.daemon.ResolveOutput(vars["id"], vars["filename"])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "output not found", "input_missing")
			return
		}
		s.writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", vars["filename"]))
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported", "internal")
		return
	}
	sub := s.daemon.Subscribe(mux.Vars(r)["id"])
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn("encode event", logging.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	stats, err := s.queueSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:    status.Running,
		PID:        s.daemon.PID(),
		Workers:    status.Pipeline.Workers,
		QueueStats: stats,
		QueueDB:    status.QueueDBPath,
		LockFile:   status.LockFilePath,
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value), "validation")
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req api.RetryRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", "validation")
			return
		}
	}
	affected, err := s.daemon.RetryFailed(r.Context(), req.JobIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActionResponse{Affected: affected})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	var req api.ClearRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", "validation")
			return
		}
	}
	affected, err := s.daemon.ClearQueue(r.Context(), req.Scope)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActionResponse{Affected: affected})
}

// writeServiceError maps classified errors onto transport status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	details := services.Details(err)
	status := http.StatusInternalServerError
	switch details.Kind {
	case services.KindValidation:
		status = http.StatusUnprocessableEntity
	case services.KindInputMissing:
		status = http.StatusNotFound
	case services.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	s.writeError(w, status, details.Message, string(details.Kind))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}
