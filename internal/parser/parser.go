// Package parser turns raw log lines into structured events and persists
// them. One concrete parser exists per log kind; the poller selects the
// implementation when a source is configured, never per line.
package parser

import (
	"context"
	"regexp"
	"time"

	"github.com/logsentry/logsentry/internal/models"
)

// LineParser processes one raw log line end to end: decode, detect, persist.
// The boolean result reports whether the line produced a persisted event;
// a line that matches no known format returns (false, nil) — that is not an
// error, just "not this format".
type LineParser interface {
	Name() string
	ProcessLine(ctx context.Context, line string) (bool, error)
}

// EventStore is the persistence contract the parsers depend on. Implemented
// by storage.Store.
type EventStore interface {
	SaveSSHEvent(ctx context.Context, ev *models.SSHEvent) (int64, error)
	SaveAccessEvent(ctx context.Context, ev *models.AccessEvent) (int64, error)
	// SaveAccessEventWithThreats must be atomic: the event and all derived
	// attack records commit together or not at all.
	SaveAccessEventWithThreats(ctx context.Context, ev *models.AccessEvent, threats []models.ThreatMatch) (int64, []models.AttackRecord, error)
	SaveErrorEvent(ctx context.Context, ev *models.ErrorEvent) (int64, error)
	SaveAttack(ctx context.Context, rec *models.AttackRecord) (int64, error)
}

// AlertSink receives attack records after they have been persisted.
// Implemented by notifier.Publisher.
type AlertSink interface {
	Publish(ctx context.Context, rec *models.AttackRecord) error
}

// FailureTracker aggregates failed logins and connection attempts per source
// IP over a rolling window and reports volume-based threats (brute force,
// port scans). Implemented by tracker.Tracker.
type FailureTracker interface {
	RecordFailure(ctx context.Context, ip, username string, at time.Time) (models.ThreatMatch, bool, error)
	RecordConnection(ctx context.Context, ip string, port int, at time.Time) (models.ThreatMatch, bool, error)
}

// parseTimestamp tries each layout in order and returns the first that
// parses. The zero time and false mean no layout matched.
func parseTimestamp(value string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// groups maps named capture groups of a match to their captured text.
func groups(re *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			out[name] = match[i]
		}
	}
	return out
}
