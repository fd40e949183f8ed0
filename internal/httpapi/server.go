// Package httpapi is the operator-facing admin surface: health probes,
// Prometheus metrics and read-only views of the queues and held tasks.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/atelier/internal/observability"
	"github.com/ent0n29/atelier/internal/policy"
	"github.com/ent0n29/atelier/internal/tasks"
)

type Server struct {
	engine    *tasks.Engine
	pending   *tasks.PendingStore
	metrics   *observability.Metrics
	storeMode string
}

func New(engine *tasks.Engine, pending *tasks.PendingStore, metrics *observability.Metrics, storeMode string) *Server {
	return &Server{
		engine:    engine,
		pending:   pending,
		metrics:   metrics,
		storeMode: storeMode,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/queues", s.handleListQueues)
	r.Get("/v1/approvals", s.handleListApprovals)
	r.Get("/v1/latency", s.handleLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"credential_store_mode": s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.engine == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "engine not started")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":                "ready",
		"credential_store_mode": s.storeMode,
	})
}

type queueResponse struct {
	Credential string `json:"credential"`
	Depth      int    `json:"depth"`
	Busy       bool   `json:"busy"`
}

func (s *Server) handleListQueues(w http.ResponseWriter, _ *http.Request) {
	stats := s.engine.Stats()
	out := make([]queueResponse, 0, len(stats))
	for _, st := range stats {
		out = append(out, queueResponse{
			Credential: policy.RedactCredential(st.Credential),
			Depth:      st.Depth,
			Busy:       st.Busy,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credential < out[j].Credential })
	respondJSON(w, http.StatusOK, map[string]any{"queues": out})
}

type approvalResponse struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Images     int       `json:"images"`
	IssuedBy   string    `json:"issued_by"`
	HeldAt     time.Time `json:"held_at"`
	AgeSeconds float64   `json:"age_seconds"`
}

func (s *Server) handleListApprovals(w http.ResponseWriter, _ *http.Request) {
	entries := s.pending.List()
	out := make([]approvalResponse, 0, len(entries))
	now := time.Now()
	for _, e := range entries {
		prompt := ""
		if len(e.Task.Images) > 0 {
			prompt = e.Task.Images[0].Prompt
		}
		out = append(out, approvalResponse{
			ID:         e.ID,
			Prompt:     prompt,
			Images:     len(e.Task.Images),
			IssuedBy:   e.Task.IssuedBy,
			HeldAt:     e.HeldAt.UTC(),
			AgeSeconds: now.Sub(e.HeldAt).Seconds(),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"approvals": out})
}

func (s *Server) handleLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, observability.StageSnapshot{Stages: []observability.StageStats{}})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.LatencySnapshot())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
