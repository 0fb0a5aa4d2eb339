// Package service is the classification service's HTTP side: it accepts
// compact descriptor batches on /api/simplify, runs them through a Model,
// and answers with the envelope the classify client expects.
package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cogniclear/cogniclear/classify"
	"github.com/cogniclear/cogniclear/descriptor"
)

// MaxElements caps one request's batch. Anything past the cap is dropped,
// not rejected, mirroring the pipeline's behaviour on the client side.
const MaxElements = 100

// Service handles simplification requests.
type Service struct {
	model  Model
	logger *slog.Logger
}

// New creates a Service over a model.
func New(model Model, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{model: model, logger: logger}
}

// Router builds the service's HTTP router.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/api/simplify", s.handleSimplify)
	return r
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "cogniclear",
		"status":  "running",
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSimplify classifies one batch. Invalid input is a 400 with a
// success:false envelope; model failure is a 500 with the same shape, so
// clients always get the envelope and can fall back locally.
func (s *Service) handleSimplify(w http.ResponseWriter, r *http.Request) {
	var req classify.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Elements) == 0 {
		writeError(w, http.StatusBadRequest, "elements array is required and must not be empty")
		return
	}

	total := len(req.Elements)
	if total > MaxElements {
		s.logger.Info("service: capping batch", "received", total, "cap", MaxElements)
		req.Elements = req.Elements[:MaxElements]
	}

	start := time.Now()
	items, err := s.model.Simplify(r.Context(), req)
	if err != nil {
		s.logger.Error("service: simplify failed", "elements", len(req.Elements), "error", err)
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	essential := descriptor.Essential(items)
	simplified, err := json.Marshal(essential)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}

	resp := classify.Response{
		Success:           true,
		Simplified:        simplified,
		ProcessingTime:    time.Since(start).Milliseconds(),
		TotalElements:     total,
		EssentialElements: len(essential),
	}
	if req.ChunkSize > 0 && req.ChunkSize < total {
		resp.IsPartial = true
		resp.ProcessedCount = len(req.Elements)
		resp.RemainingCount = total - len(req.Elements)
	}

	s.logger.Info("service: batch simplified",
		"elements", len(req.Elements), "essential", len(essential),
		"elapsed", time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, classify.Response{Success: false, Error: msg})
}
