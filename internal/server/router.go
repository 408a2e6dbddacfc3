// Package server wires the HTTP routes and runs the API server.
package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logsentry/logsentry/internal/handlers"
	"github.com/logsentry/logsentry/internal/middleware"
)

// NewRouter constructs a ServeMux with the dashboard API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.HandleFunc("/readyz", h.ReadyCheck)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/events/ssh", h.ListSSHEvents)
	mux.HandleFunc("/api/v1/events/access", h.ListAccessEvents)
	mux.HandleFunc("/api/v1/events/errors", h.ListErrorEvents)

	mux.HandleFunc("/api/v1/attacks", h.ListAttacks)
	mux.HandleFunc("/api/v1/attacks/stats", h.AttackStats)
	mux.HandleFunc("/api/v1/attacks/timeline", h.AttackTimeline)

	// POST /api/v1/attacks/{id}/resolve and /api/v1/attacks/{id}/block
	mux.HandleFunc("/api/v1/attacks/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/resolve") || strings.HasSuffix(r.URL.Path, "/block") {
			h.AttackAction(w, r)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
	})

	chain := middleware.CORS(middleware.DefaultCORSConfig())(mux)
	return middleware.RequestID(chain)
}
