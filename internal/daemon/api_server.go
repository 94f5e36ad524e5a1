package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"webmill/internal/api"
	"webmill/internal/config"
	"webmill/internal/convert"
	"webmill/internal/fileutil"
	"webmill/internal/jobs"
	"webmill/internal/logging"
)

// maxUploadBytes caps the accepted request body for uploads.
const maxUploadBytes = 500 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}

	srv := &apiServer{
		bind:   cfg.Bind(),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/convert", srv.handleConvert)
	mux.HandleFunc("/api/progress/", srv.handleProgress)
	mux.HandleFunc("/api/download/", srv.handleDownload)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJobRemove)
	mux.HandleFunc("/api/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
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

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cfg := s.daemon.cfg
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:  "healthy",
		Message: "Video conversion service is running",
		Version: Version,
		Config: api.HealthConfig{
			Port:             cfg.Server.Port,
			SupportedFormats: cfg.Conversion.SupportedFormats,
			Presets:          cfg.PresetNames(),
		},
	})
}

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	if filename == "" || filename == "." {
		s.writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.daemon.cfg.SupportsFormat(ext) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file format: %s", ext))
		return
	}

	settingsJSON := r.FormValue("settings")
	raw := convert.ParseRawSettings(settingsJSON)
	settings := convert.ResolveSettings(s.daemon.cfg, raw)

	job, err := s.daemon.Accept(r.Context(), filename, file, settings, settingsJSON)
	if err != nil {
		s.log().Error("accept conversion failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to start conversion")
		return
	}

	s.writeJSON(w, http.StatusOK, api.ConvertResponse{
		ConversionID: job.ID,
		Message:      "Conversion started",
	})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}

	job, err := s.daemon.Job(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}

	s.writeJSON(w, http.StatusOK, progressPayload(job))
}

func progressPayload(job *jobs.Job) api.ProgressResponse {
	payload := api.ProgressResponse{
		Status:   string(job.Status),
		Progress: job.Progress,
		Time:     job.TimePosition,
		FPS:      job.FPS,
		Speed:    job.Speed,
		ETA:      job.ETA,
		Bitrate:  job.Bitrate,
	}
	switch job.Status {
	case jobs.StatusCompleted:
		payload.Filename = filepath.Base(job.OutputPath)
		payload.InputSize = job.InputSize
		payload.OutputSize = job.OutputSize
		payload.CompressionRatio = job.CompressionRatio
		payload.DownloadURL = "/api/download/" + job.ID
	case jobs.StatusError:
		payload.Error = job.ErrorMessage
	}
	return payload
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/download/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}

	job, err := s.daemon.Job(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}
	if job.Status != jobs.StatusCompleted {
		s.writeError(w, http.StatusNotFound, "Conversion not completed")
		return
	}
	if !fileutil.Exists(job.OutputPath) {
		s.writeError(w, http.StatusNotFound, "Output file not found")
		return
	}

	w.Header().Set("Content-Type", "video/webm")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(job.OutputPath)))
	http.ServeFile(w, r, job.OutputPath)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		removed, err := s.daemon.ClearCompleted(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
		return
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		if status, ok := jobs.ParseStatus(value); ok {
			statuses = append(statuses, status)
		}
	}

	list, err := s.daemon.Jobs(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]api.JobSummary, 0, len(list))
	for _, job := range list {
		summaries = append(summaries, api.JobSummary{
			ConversionID:     job.ID,
			Filename:         job.SourceName,
			Status:           string(job.Status),
			Progress:         job.Progress,
			InputSize:        job.InputSize,
			OutputSize:       job.OutputSize,
			CompressionRatio: job.CompressionRatio,
			Error:            job.ErrorMessage,
			CreatedAt:        job.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:        job.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, api.JobsResponse{Jobs: summaries})
}

func (s *apiServer) handleJobRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}

	removed, err := s.daemon.RemoveJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrJobProcessing) {
			s.writeError(w, http.StatusConflict, "Conversion still processing")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}

	s.writeJSON(w, http.StatusOK, api.RemoveResponse{
		ConversionID: id,
		Message:      "Conversion removed",
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:       status.Running,
		PID:           status.PID,
		UptimeSeconds: status.UptimeSeconds,
		Jobs: api.JobCounts{
			Total:      status.Jobs.Total,
			Processing: status.Jobs.Processing,
			Completed:  status.Jobs.Completed,
			Errored:    status.Jobs.Errored,
		},
		JobDBPath:    status.JobDBPath,
		LockFilePath: status.LockFilePath,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.WithComponent(s.logger, "api-server")
}
