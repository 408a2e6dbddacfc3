package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/models"
	"github.com/logsentry/logsentry/internal/storage"
)

type mockQueryStore struct {
	sshEvents    []models.SSHEvent
	accessEvents []models.AccessEvent
	errorEvents  []models.ErrorEvent
	attacks      []models.AttackRecord

	lastEventFilter  storage.EventFilter
	lastAttackFilter storage.AttackFilter

	setResolvedFunc func(id int64, resolved bool) error
	setBlockedFunc  func(id int64, blocked bool) error
	pingErr         error
}

func (m *mockQueryStore) ListSSHEvents(_ context.Context, f storage.EventFilter) ([]models.SSHEvent, int, error) {
	m.lastEventFilter = f
	return m.sshEvents, len(m.sshEvents), nil
}

func (m *mockQueryStore) ListAccessEvents(_ context.Context, f storage.EventFilter) ([]models.AccessEvent, int, error) {
	m.lastEventFilter = f
	return m.accessEvents, len(m.accessEvents), nil
}

func (m *mockQueryStore) ListErrorEvents(_ context.Context, f storage.EventFilter) ([]models.ErrorEvent, int, error) {
	m.lastEventFilter = f
	return m.errorEvents, len(m.errorEvents), nil
}

func (m *mockQueryStore) ListAttacks(_ context.Context, f storage.AttackFilter) ([]models.AttackRecord, int, error) {
	m.lastAttackFilter = f
	return m.attacks, len(m.attacks), nil
}

func (m *mockQueryStore) AttackStats(_ context.Context, _ *time.Time) (*storage.AttackStats, error) {
	return &storage.AttackStats{
		Total:      len(m.attacks),
		Unresolved: len(m.attacks),
		BySeverity: []storage.CountItem{{Key: "critical", Count: len(m.attacks)}},
	}, nil
}

func (m *mockQueryStore) AttackTimeline(_ context.Context, interval string, _ *time.Time) ([]storage.TimeBucket, error) {
	return []storage.TimeBucket{{Bucket: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), Count: 3}}, nil
}

func (m *mockQueryStore) SetResolved(_ context.Context, id int64, resolved bool) error {
	if m.setResolvedFunc != nil {
		return m.setResolvedFunc(id, resolved)
	}
	return nil
}

func (m *mockQueryStore) SetBlocked(_ context.Context, id int64, blocked bool) error {
	if m.setBlockedFunc != nil {
		return m.setBlockedFunc(id, blocked)
	}
	return nil
}

func (m *mockQueryStore) Ping(context.Context) error { return m.pingErr }

func newTestHandler(store Store) *Handler {
	return New(store, logging.New(slog.LevelError, "text"))
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(&mockQueryStore{})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadyCheckUnavailable(t *testing.T) {
	h := newTestHandler(&mockQueryStore{pingErr: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	h.ReadyCheck(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListSSHEventsAppliesFilters(t *testing.T) {
	store := &mockQueryStore{
		sshEvents: []models.SSHEvent{{ID: 1, IPAddress: "203.0.113.10"}},
	}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.ListSSHEvents(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/events/ssh?ip=203.0.113.10&status=failed&suspicious=true&page=2&limit=50", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.10", store.lastEventFilter.IP)
	assert.Equal(t, "failed", store.lastEventFilter.Status)
	require.NotNil(t, store.lastEventFilter.Suspicious)
	assert.True(t, *store.lastEventFilter.Suspicious)
	assert.Equal(t, 2, store.lastEventFilter.Page)
	assert.Equal(t, 50, store.lastEventFilter.Limit)

	var resp struct {
		Total int `json:"total"`
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 50, resp.Limit)
}

func TestListSSHEventsRejectsPost(t *testing.T) {
	h := newTestHandler(&mockQueryStore{})

	rec := httptest.NewRecorder()
	h.ListSSHEvents(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events/ssh", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListAccessEventsHoursParam(t *testing.T) {
	store := &mockQueryStore{}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.ListAccessEvents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/access?hours=24", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastEventFilter.Since)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), *store.lastEventFilter.Since, time.Minute)
}

func TestListErrorEventsLevelFilter(t *testing.T) {
	store := &mockQueryStore{}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.ListErrorEvents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/errors?level=crit", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "crit", store.lastEventFilter.Status)
}

func TestListAttacksFilters(t *testing.T) {
	store := &mockQueryStore{
		attacks: []models.AttackRecord{{ID: 7, Category: models.CategoryWebShell}},
	}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.ListAttacks(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/attacks?severity=critical&category=Web+Shell&resolved=false", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "critical", store.lastAttackFilter.Severity)
	assert.Equal(t, "Web Shell", store.lastAttackFilter.Category)
	require.NotNil(t, store.lastAttackFilter.Resolved)
	assert.False(t, *store.lastAttackFilter.Resolved)
}

func TestAttackStatsEndpoint(t *testing.T) {
	store := &mockQueryStore{attacks: []models.AttackRecord{{ID: 1}, {ID: 2}}}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.AttackStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/attacks/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats storage.AttackStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
}

func TestAttackTimelineValidation(t *testing.T) {
	h := newTestHandler(&mockQueryStore{})

	rec := httptest.NewRecorder()
	h.AttackTimeline(rec, httptest.NewRequest(http.MethodGet, "/api/v1/attacks/timeline?interval=week", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.AttackTimeline(rec, httptest.NewRequest(http.MethodGet, "/api/v1/attacks/timeline?interval=day", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"day"`)
}

func TestAttackResolve(t *testing.T) {
	var gotID int64
	var gotValue bool
	store := &mockQueryStore{
		setResolvedFunc: func(id int64, resolved bool) error {
			gotID, gotValue = id, resolved
			return nil
		},
	}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.AttackAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attacks/42/resolve", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotID)
	assert.True(t, gotValue)
}

func TestAttackBlockWithBody(t *testing.T) {
	var gotValue bool
	store := &mockQueryStore{
		setBlockedFunc: func(id int64, blocked bool) error {
			gotValue = blocked
			return nil
		},
	}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attacks/7/block", strings.NewReader(`{"value": false}`))
	h.AttackAction(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gotValue)
}

func TestAttackResolveNotFound(t *testing.T) {
	store := &mockQueryStore{
		setResolvedFunc: func(int64, bool) error { return storage.ErrNotFound },
	}
	h := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.AttackAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attacks/999/resolve", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttackActionInvalidID(t *testing.T) {
	h := newTestHandler(&mockQueryStore{})

	rec := httptest.NewRecorder()
	h.AttackAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attacks/abc/resolve", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

