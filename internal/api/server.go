// Package api exposes planning sessions over HTTP. Estimate updates are
// streamed to the form over a websocket so the client never polls.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
	"github.com/p-n-ai/pai-mapper/internal/planner"
)

const readyTimeout = 2 * time.Second

// Catalog lists and reloads curriculum sources.
type Catalog interface {
	AllSources() []curriculum.Source
	Reload() error
}

// Subscriber hands out per-session estimate update streams.
type Subscriber interface {
	Subscribe(sessionID string) (<-chan planner.EstimateUpdate, func())
}

// HealthChecker is a dependency reported by /readyz.
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// Config holds the server's dependencies. Updates and Checks are optional.
type Config struct {
	Planner        *planner.Service
	Catalog        Catalog
	Updates        Subscriber
	Checks         []HealthChecker
	OriginPatterns []string
}

// Server routes HTTP requests to the planner.
type Server struct {
	planner *planner.Service
	catalog Catalog
	updates Subscriber
	checks  []HealthChecker
	origins []string
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("api: planner is nil")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("api: catalog is nil")
	}
	return &Server{
		planner: cfg.Planner,
		catalog: cfg.Catalog,
		updates: cfg.Updates,
		checks:  cfg.Checks,
		origins: cfg.OriginPatterns,
	}, nil
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /v1/sources", s.handleListSources)
	mux.HandleFunc("POST /v1/sources/reload", s.handleReloadSources)

	mux.HandleFunc("POST /v1/sessions", s.handleOpenSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("POST /v1/sessions/{id}/actions", s.handleApplyAction)
	mux.HandleFunc("GET /v1/sessions/{id}/export.xlsx", s.handleExport)
	mux.HandleFunc("GET /v1/sessions/{id}/stream", s.handleStream)
	mux.HandleFunc("POST /v1/sessions/{id}/save", s.handleSavePlan)

	mux.HandleFunc("GET /v1/plans/{id}", s.handleGetPlan)
	mux.HandleFunc("POST /v1/plans/{id}/open", s.handleOpenPlan)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readiness{Status: "ready"}
	status := http.StatusOK
	for _, c := range s.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(s.checks))
		}
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name(), "error", err)
			resp.Checks[c.Name()] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name()] = "ok"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}
