// Package api exposes the HTTP interface for the harvester service.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/config"
	"github.com/psdocs/doc-harvester/internal/harvest"
	"github.com/psdocs/doc-harvester/internal/jobs"
	"github.com/psdocs/doc-harvester/internal/metrics"
)

// Request timeouts. The blocking crawl endpoint runs a whole job inside one
// request, so it gets a much longer budget than the polling surface.
const (
	pollTimeout     = 60 * time.Second
	blockingTimeout = 10 * time.Minute
)

// Server wires HTTP handlers to the job service.
type Server struct {
	router chi.Router
	jobs   *jobs.Service
	logger *zap.Logger
	cfg    config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobService *jobs.Service, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:   jobService,
		logger: logger,
		cfg:    cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/crawl", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(blockingTimeout))
			r.Post("/", s.crawlBlocking)
		})
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(pollTimeout))
			r.Post("/jobs", s.createJob)
			r.Route("/jobs/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL      string `json:"url"`
	MaxPages *int   `json:"max_pages"`
	MaxDepth *int   `json:"max_depth"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeCrawlRequest(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Create(cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Cancel(chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) crawlBlocking(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeCrawlRequest(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.RunBlocking(r.Context(), cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// decodeCrawlRequest parses the request body and fills in configured
// defaults and caps. A false return means the response has been written.
func (s *Server) decodeCrawlRequest(w http.ResponseWriter, r *http.Request) (harvest.JobConfig, bool) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return harvest.JobConfig{}, false
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return harvest.JobConfig{}, false
	}

	cfg := harvest.JobConfig{
		SeedURL:  req.URL,
		MaxPages: valueOrDefault(req.MaxPages, s.cfg.Crawler.MaxPagesDefault),
		MaxDepth: valueOrDefault(req.MaxDepth, s.cfg.Crawler.MaxDepthDefault),
	}
	if cfg.MaxPages > s.cfg.Crawler.MaxPagesLimit {
		cfg.MaxPages = s.cfg.Crawler.MaxPagesLimit
	}
	if cfg.MaxDepth > s.cfg.Crawler.MaxDepthLimit {
		cfg.MaxDepth = s.cfg.Crawler.MaxDepthLimit
	}
	return cfg, true
}

func valueOrDefault(ptr *int, def int) int {
	if ptr == nil {
		return def
	}
	return *ptr
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
