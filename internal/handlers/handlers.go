// Package handlers provides the HTTP handlers for the dashboard query API.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/logsentry/logsentry/internal/httputil"
	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/models"
	"github.com/logsentry/logsentry/internal/storage"
)

// Store is the persistence surface the handlers read from.
type Store interface {
	ListSSHEvents(ctx context.Context, f storage.EventFilter) ([]models.SSHEvent, int, error)
	ListAccessEvents(ctx context.Context, f storage.EventFilter) ([]models.AccessEvent, int, error)
	ListErrorEvents(ctx context.Context, f storage.EventFilter) ([]models.ErrorEvent, int, error)
	ListAttacks(ctx context.Context, f storage.AttackFilter) ([]models.AttackRecord, int, error)
	AttackStats(ctx context.Context, since *time.Time) (*storage.AttackStats, error)
	AttackTimeline(ctx context.Context, interval string, since *time.Time) ([]storage.TimeBucket, error)
	SetResolved(ctx context.Context, id int64, resolved bool) error
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	Ping(ctx context.Context) error
}

// Handler serves the dashboard query API.
type Handler struct {
	store Store
	log   *logging.Logger
}

// New creates a Handler backed by the given store.
func New(store Store, log *logging.Logger) *Handler {
	return &Handler{store: store, log: log.With(logging.Component("api"))}
}

// listResponse is the envelope for paginated listings.
type listResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "logsentry",
	})
}

// ReadyCheck handles GET /readyz. Ready means the database answers a ping.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"service": "logsentry",
	})
}

// queryInt parses an integer query parameter, returning 0 when absent or
// malformed.
func queryInt(r *http.Request, name string) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) *bool {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}
	return &b
}

// querySince resolves the time-range start from either since=RFC3339 or
// hours=N. since wins when both are present.
func querySince(r *http.Request) *time.Time {
	if value := r.URL.Query().Get("since"); value != "" {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return &ts
		}
	}
	if hours := queryInt(r, "hours"); hours > 0 {
		ts := time.Now().Add(-time.Duration(hours) * time.Hour)
		return &ts
	}
	return nil
}

func queryUntil(r *http.Request) *time.Time {
	if value := r.URL.Query().Get("until"); value != "" {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return &ts
		}
	}
	return nil
}

// pathID extracts the numeric ID segment from a path like /api/v1/attacks/42/resolve.
func pathID(path, prefix, suffix string) (int64, bool) {
	remaining := strings.TrimPrefix(path, prefix)
	remaining = strings.TrimPrefix(remaining, "/")
	remaining = strings.TrimSuffix(remaining, suffix)
	remaining = strings.TrimSuffix(remaining, "/")

	id, err := strconv.ParseInt(remaining, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
