package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dualsub/internal/history"
	"dualsub/internal/jobs"
	"dualsub/internal/logging"
	"dualsub/internal/services"
	"dualsub/internal/workflow"
)

const maxRequestBody = 1 << 20

// StatusFunc supplies the daemon section of GET /api/status.
type StatusFunc func(ctx context.Context) DaemonStatus

// Server serves the job API.
type Server struct {
	manager   *workflow.Manager
	history   *history.Store
	status    StatusFunc
	token     string
	retention time.Duration
	metrics   http.Handler
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the /api/history routes.
func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithStatus replaces the default status report.
func WithStatus(fn StatusFunc) Option {
	return func(s *Server) { s.status = fn }
}

// WithToken requires a bearer token on /api routes.
func WithToken(token string) Option {
	return func(s *Server) { s.token = strings.TrimSpace(token) }
}

// WithRetention sets the default cleanup retention.
func WithRetention(d time.Duration) Option {
	return func(s *Server) { s.retention = d }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer builds a server around the workflow manager.
func NewServer(manager *workflow.Manager, opts ...Option) *Server {
	s := &Server{
		manager:   manager,
		retention: jobs.DefaultRetention,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "api")
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/jobs", s.handleSubmit)
	api.HandleFunc("GET /api/jobs", s.handleList)
	api.HandleFunc("POST /api/jobs/cleanup", s.handleCleanup)
	api.HandleFunc("GET /api/jobs/{id}", s.handleGet)
	api.HandleFunc("GET /api/jobs/{id}/status", s.handleProgress)
	api.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancel)
	api.HandleFunc("DELETE /api/jobs/{id}", s.handleCancel)
	api.HandleFunc("GET /api/history", s.handleHistory)
	api.HandleFunc("GET /api/history/{id}", s.handleHistoryEntry)
	api.HandleFunc("GET /api/status", s.handleStatus)

	root := http.NewServeMux()
	root.Handle("/api/", authMiddleware(s.token, api))
	if s.metrics != nil {
		root.Handle("GET /metrics", s.metrics)
	}
	return requestIDMiddleware(root)
}

func (s *Server) orchestrator() *jobs.Orchestrator {
	return s.manager.Orchestrator()
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "submit", "read request body", err))
		return
	}
	req, err := workflow.DecodeJSON(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.manager.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, JobResponse{Job: job})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []jobs.Status
	for _, raw := range query["status"] {
		for _, value := range strings.Split(raw, ",") {
			if strings.TrimSpace(value) == "" {
				continue
			}
			status, err := jobs.ParseStatus(value)
			if err != nil {
				s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", err.Error(), nil))
				return
			}
			statuses = append(statuses, status)
		}
	}
	list := s.orchestrator().GetAllJobs(statuses...)
	if jobType := strings.TrimSpace(query.Get("type")); jobType != "" {
		filtered := list[:0]
		for _, job := range list {
			if string(job.Type) == jobType {
				filtered = append(filtered, job)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: list})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (jobs.Job, bool) {
	id := r.PathValue("id")
	job, ok := s.orchestrator().GetJob(id)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "lookup", fmt.Sprintf("job %s not found", id), nil))
		return jobs.Job{}, false
	}
	return job, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if job, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, JobResponse{Job: job})
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ProgressResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		Cancelled: job.Cancelled(),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !s.orchestrator().CancelJob(job.ID) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     fmt.Sprintf("job %s is already %s", job.ID, job.Status),
			Kind:      "conflict",
			RequestID: requestID(r),
		})
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("job cancel requested", logging.String(logging.FieldJobID, job.ID))
	job, _ = s.orchestrator().GetJob(job.ID)
	writeJSON(w, http.StatusOK, JobResponse{Job: job})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	retention := s.retention
	if raw := strings.TrimSpace(r.URL.Query().Get("retention_hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "cleanup", "retention_hours must be a non-negative integer", nil))
			return
		}
		retention = time.Duration(hours) * time.Hour
	}
	removed := s.orchestrator().CleanupOldJobs(retention)
	if retention <= 0 {
		retention = jobs.DefaultRetention
	}
	writeJSON(w, http.StatusOK, CleanupResponse{Removed: removed, RetentionHours: int(retention / time.Hour)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "history", "job history is disabled", nil))
		return
	}
	query := r.URL.Query()
	filter := history.Filter{Type: jobs.Type(strings.TrimSpace(query.Get("type")))}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := jobs.ParseStatus(raw)
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "history", err.Error(), nil))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "history", "limit must be a non-negative integer", nil))
			return
		}
		filter.Limit = limit
	}
	entries, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "history", "job history is disabled", nil))
		return
	}
	entry, err := s.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryEntryResponse{Entry: entry})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status != nil {
		writeJSON(w, http.StatusOK, s.status(r.Context()))
		return
	}
	orch := s.orchestrator()
	status := DaemonStatus{
		Running:           true,
		PID:               os.Getpid(),
		MaxConcurrentJobs: orch.MaxConcurrentJobs(),
		JobCounts:         CountsByName(orch.Counts()),
	}
	if s.history != nil {
		status.HistoryPath = s.history.Path()
	}
	writeJSON(w, http.StatusOK, status)
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	switch services.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "cancelled":
		return http.StatusConflict
	case "timeout":
		return http.StatusGatewayTimeout
	case "external_tool", "transient":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "request was not served"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Kind:      services.Kind(err),
		Hint:      services.Hint(err),
		RequestID: requestID(r),
	})
}

func requestID(r *http.Request) string {
	id, _ := services.RequestIDFromContext(r.Context())
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
