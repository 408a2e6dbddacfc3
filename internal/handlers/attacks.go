package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/logsentry/logsentry/internal/httputil"
	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/storage"
)

// ListAttacks handles GET /api/v1/attacks.
func (h *Handler) ListAttacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f := storage.AttackFilter{
		Severity: r.URL.Query().Get("severity"),
		Category: r.URL.Query().Get("category"),
		SourceIP: r.URL.Query().Get("source_ip"),
		Resolved: queryBool(r, "resolved"),
		Since:    querySince(r),
		Until:    queryUntil(r),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	}

	records, total, err := h.store.ListAttacks(r.Context(), f)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list attacks", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list attacks")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Data:  records,
		Total: total,
		Page:  effectivePage(f.Page),
		Limit: effectiveLimit(f.Limit),
	})
}

// AttackStats handles GET /api/v1/attacks/stats.
func (h *Handler) AttackStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := h.store.AttackStats(r.Context(), querySince(r))
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to build attack stats", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to build attack stats")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// AttackTimeline handles GET /api/v1/attacks/timeline.
func (h *Handler) AttackTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "hour"
	}
	if interval != "hour" && interval != "day" {
		httputil.WriteError(w, http.StatusBadRequest, "interval must be hour or day")
		return
	}

	buckets, err := h.store.AttackTimeline(r.Context(), interval, querySince(r))
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to build attack timeline", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to build attack timeline")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"interval": interval,
		"data":     buckets,
	})
}

// AttackAction routes POST /api/v1/attacks/{id}/resolve and
// POST /api/v1/attacks/{id}/block. The optional JSON body {"value": false}
// clears the flag instead of setting it.
func (h *Handler) AttackAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var action string
	switch {
	case strings.HasSuffix(r.URL.Path, "/resolve"):
		action = "resolve"
	case strings.HasSuffix(r.URL.Path, "/block"):
		action = "block"
	default:
		httputil.WriteError(w, http.StatusNotFound, "unknown attack action")
		return
	}

	id, ok := pathID(r.URL.Path, "/api/v1/attacks", "/"+action)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid attack id")
		return
	}

	value := true
	if r.Body != nil && r.ContentLength != 0 {
		var body struct {
			Value *bool `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Value != nil {
			value = *body.Value
		}
	}

	var err error
	if action == "resolve" {
		err = h.store.SetResolved(r.Context(), id, value)
	} else {
		err = h.store.SetBlocked(r.Context(), id, value)
	}

	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "attack not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to update attack", logging.AttackID(id), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update attack")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"action": action,
		"value":  value,
	})
}
