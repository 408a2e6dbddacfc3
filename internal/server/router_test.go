package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/logsentry/logsentry/internal/handlers"
	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/models"
	"github.com/logsentry/logsentry/internal/storage"
)

type stubStore struct{}

func (stubStore) ListSSHEvents(context.Context, storage.EventFilter) ([]models.SSHEvent, int, error) {
	return nil, 0, nil
}

func (stubStore) ListAccessEvents(context.Context, storage.EventFilter) ([]models.AccessEvent, int, error) {
	return nil, 0, nil
}

func (stubStore) ListErrorEvents(context.Context, storage.EventFilter) ([]models.ErrorEvent, int, error) {
	return nil, 0, nil
}

func (stubStore) ListAttacks(context.Context, storage.AttackFilter) ([]models.AttackRecord, int, error) {
	return nil, 0, nil
}

func (stubStore) AttackStats(context.Context, *time.Time) (*storage.AttackStats, error) {
	return &storage.AttackStats{}, nil
}

func (stubStore) AttackTimeline(context.Context, string, *time.Time) ([]storage.TimeBucket, error) {
	return nil, nil
}

func (stubStore) SetResolved(context.Context, int64, bool) error { return nil }
func (stubStore) SetBlocked(context.Context, int64, bool) error  { return nil }
func (stubStore) Ping(context.Context) error                     { return nil }

func newTestRouter() http.Handler {
	h := handlers.New(stubStore{}, logging.New(slog.LevelError, "text"))
	return NewRouter(h)
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/events/ssh", http.StatusOK},
		{http.MethodGet, "/api/v1/events/access", http.StatusOK},
		{http.MethodGet, "/api/v1/events/errors", http.StatusOK},
		{http.MethodGet, "/api/v1/attacks", http.StatusOK},
		{http.MethodGet, "/api/v1/attacks/stats", http.StatusOK},
		{http.MethodGet, "/api/v1/attacks/timeline", http.StatusOK},
		{http.MethodPost, "/api/v1/attacks/1/resolve", http.StatusOK},
		{http.MethodPost, "/api/v1/attacks/1/block", http.StatusOK},
		{http.MethodGet, "/api/v1/attacks/1/details", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterPropagatesRequestID(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/attacks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
