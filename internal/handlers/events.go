package handlers

import (
	"net/http"

	"github.com/logsentry/logsentry/internal/httputil"
	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/storage"
)

func eventFilterFromRequest(r *http.Request) storage.EventFilter {
	return storage.EventFilter{
		IP:         r.URL.Query().Get("ip"),
		Status:     r.URL.Query().Get("status"),
		EventType:  r.URL.Query().Get("event_type"),
		StatusCode: queryInt(r, "status_code"),
		Suspicious: queryBool(r, "suspicious"),
		Since:      querySince(r),
		Until:      queryUntil(r),
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
	}
}

// ListSSHEvents handles GET /api/v1/events/ssh.
func (h *Handler) ListSSHEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f := eventFilterFromRequest(r)
	events, total, err := h.store.ListSSHEvents(r.Context(), f)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list ssh events", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list ssh events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Data:  events,
		Total: total,
		Page:  effectivePage(f.Page),
		Limit: effectiveLimit(f.Limit),
	})
}

// ListAccessEvents handles GET /api/v1/events/access.
func (h *Handler) ListAccessEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f := eventFilterFromRequest(r)
	events, total, err := h.store.ListAccessEvents(r.Context(), f)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list access events", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list access events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Data:  events,
		Total: total,
		Page:  effectivePage(f.Page),
		Limit: effectiveLimit(f.Limit),
	})
}

// ListErrorEvents handles GET /api/v1/events/errors. The status filter matches
// the error level (error, warn, crit).
func (h *Handler) ListErrorEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f := eventFilterFromRequest(r)
	if level := r.URL.Query().Get("level"); level != "" {
		f.Status = level
	}

	events, total, err := h.store.ListErrorEvents(r.Context(), f)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list error events", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list error events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Data:  events,
		Total: total,
		Page:  effectivePage(f.Page),
		Limit: effectiveLimit(f.Limit),
	})
}

// effectiveLimit and effectivePage mirror the clamping the storage layer
// applies so the response envelope reports what was actually used.
func effectiveLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func effectivePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
