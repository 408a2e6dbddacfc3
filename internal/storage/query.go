package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/logsentry/logsentry/internal/models"
)

// EventFilter narrows event listings. Zero values mean "no constraint".
type EventFilter struct {
	IP         string
	Status     string // ssh status or error-log level
	EventType  string
	StatusCode int // access events only
	Suspicious *bool
	Since      *time.Time
	Until      *time.Time
	Page       int
	Limit      int
}

// AttackFilter narrows attack listings. Zero values mean "no constraint".
type AttackFilter struct {
	Severity string
	Category string
	SourceIP string
	Resolved *bool
	Since    *time.Time
	Until    *time.Time
	Page     int
	Limit    int
}

// CountItem is one bucket of an aggregate count.
type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AttackStats aggregates attack records for the dashboard overview.
type AttackStats struct {
	Total      int         `json:"total"`
	Unresolved int         `json:"unresolved"`
	BySeverity []CountItem `json:"by_severity"`
	ByCategory []CountItem `json:"by_category"`
	TopSources []CountItem `json:"top_sources"`
	TopPaths   []CountItem `json:"top_paths"`
}

// TimeBucket is one interval of the attack timeline.
type TimeBucket struct {
	Bucket time.Time `json:"bucket"`
	Count  int       `json:"count"`
}

func (f EventFilter) pagination() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func (f AttackFilter) pagination() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// ListSSHEvents returns a filtered, paginated page of SSH events plus the
// total count matching the filter.
func (s *Store) ListSSHEvents(ctx context.Context, f EventFilter) ([]models.SSHEvent, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if f.IP != "" {
		where += fmt.Sprintf(" AND ip_address = $%d", argPos)
		args = append(args, f.IP)
		argPos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.EventType != "" {
		where += fmt.Sprintf(" AND event_type = $%d", argPos)
		args = append(args, f.EventType)
		argPos++
	}
	if f.Suspicious != nil {
		where += fmt.Sprintf(" AND is_suspicious = $%d", argPos)
		args = append(args, *f.Suspicious)
		argPos++
	}
	if f.Since != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *f.Since)
		argPos++
	}
	if f.Until != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argPos)
		args = append(args, *f.Until)
		argPos++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM ssh_events " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ssh events: %w", err)
	}

	limit, offset := f.pagination()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, timestamp, log_timestamp, host, process, pid, event_type,
		       username, ip_address, port, auth_method, status, is_suspicious, raw_line
		FROM ssh_events
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ssh events: %w", err)
	}
	defer rows.Close()

	events := []models.SSHEvent{}
	for rows.Next() {
		var ev models.SSHEvent
		if err := rows.Scan(
			&ev.ID, &ev.Timestamp, &ev.LogTimestamp, &ev.Host, &ev.Process, &ev.PID,
			&ev.EventType, &ev.Username, &ev.IPAddress, &ev.Port, &ev.AuthMethod,
			&ev.Status, &ev.IsSuspicious, &ev.RawLine,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ssh event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate ssh events: %w", err)
	}

	return events, total, nil
}

// ListAccessEvents returns a filtered, paginated page of access events plus
// the total count matching the filter.
func (s *Store) ListAccessEvents(ctx context.Context, f EventFilter) ([]models.AccessEvent, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if f.IP != "" {
		where += fmt.Sprintf(" AND ip_address = $%d", argPos)
		args = append(args, f.IP)
		argPos++
	}
	if f.StatusCode != 0 {
		where += fmt.Sprintf(" AND status_code = $%d", argPos)
		args = append(args, f.StatusCode)
		argPos++
	}
	if f.Since != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *f.Since)
		argPos++
	}
	if f.Until != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argPos)
		args = append(args, *f.Until)
		argPos++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM access_events " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count access events: %w", err)
	}

	limit, offset := f.pagination()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, timestamp, log_timestamp, ip_address, method, path, protocol,
		       status_code, response_size, referer, user_agent, request_time,
		       upstream_time, raw_line
		FROM access_events
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list access events: %w", err)
	}
	defer rows.Close()

	events := []models.AccessEvent{}
	for rows.Next() {
		var ev models.AccessEvent
		if err := rows.Scan(
			&ev.ID, &ev.Timestamp, &ev.LogTimestamp, &ev.IPAddress, &ev.Method,
			&ev.Path, &ev.Protocol, &ev.StatusCode, &ev.ResponseSize, &ev.Referer,
			&ev.UserAgent, &ev.RequestTime, &ev.UpstreamTime, &ev.RawLine,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan access event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate access events: %w", err)
	}

	return events, total, nil
}

// ListErrorEvents returns a filtered, paginated page of error events plus
// the total count matching the filter. The Status filter field matches the
// error level.
func (s *Store) ListErrorEvents(ctx context.Context, f EventFilter) ([]models.ErrorEvent, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if f.IP != "" {
		where += fmt.Sprintf(" AND client_ip = $%d", argPos)
		args = append(args, f.IP)
		argPos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND level = $%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.Since != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *f.Since)
		argPos++
	}
	if f.Until != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argPos)
		args = append(args, *f.Until)
		argPos++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM error_events " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count error events: %w", err)
	}

	limit, offset := f.pagination()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, timestamp, log_timestamp, level, pid, tid, client_ip,
		       server, request, message, raw_line
		FROM error_events
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list error events: %w", err)
	}
	defer rows.Close()

	events := []models.ErrorEvent{}
	for rows.Next() {
		var ev models.ErrorEvent
		if err := rows.Scan(
			&ev.ID, &ev.Timestamp, &ev.LogTimestamp, &ev.Level, &ev.PID, &ev.TID,
			&ev.ClientIP, &ev.Server, &ev.Request, &ev.Message, &ev.RawLine,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan error event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate error events: %w", err)
	}

	return events, total, nil
}

func attackWhere(f AttackFilter) (string, []interface{}, int) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if f.Severity != "" {
		where += fmt.Sprintf(" AND severity = $%d", argPos)
		args = append(args, f.Severity)
		argPos++
	}
	if f.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", argPos)
		args = append(args, f.Category)
		argPos++
	}
	if f.SourceIP != "" {
		where += fmt.Sprintf(" AND source_ip = $%d", argPos)
		args = append(args, f.SourceIP)
		argPos++
	}
	if f.Resolved != nil {
		where += fmt.Sprintf(" AND resolved = $%d", argPos)
		args = append(args, *f.Resolved)
		argPos++
	}
	if f.Since != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *f.Since)
		argPos++
	}
	if f.Until != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argPos)
		args = append(args, *f.Until)
		argPos++
	}

	return where, args, argPos
}

// ListAttacks returns a filtered, paginated page of attack records plus the
// total count matching the filter.
func (s *Store) ListAttacks(ctx context.Context, f AttackFilter) ([]models.AttackRecord, int, error) {
	where, args, argPos := attackWhere(f)

	var total int
	countQuery := "SELECT COUNT(*) FROM attacks " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attacks: %w", err)
	}

	limit, offset := f.pagination()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, timestamp, category, severity, description, source_ip,
		       target_path, method, user_agent, pattern, raw_request,
		       blocked, resolved, related_kind, related_event_id
		FROM attacks
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attacks: %w", err)
	}
	defer rows.Close()

	records := []models.AttackRecord{}
	for rows.Next() {
		var rec models.AttackRecord
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.Category, &rec.Severity, &rec.Description,
			&rec.SourceIP, &rec.TargetPath, &rec.Method, &rec.UserAgent, &rec.Pattern,
			&rec.RawRequest, &rec.Blocked, &rec.Resolved, &rec.RelatedKind, &rec.RelatedID,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan attack record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attacks: %w", err)
	}

	return records, total, nil
}

func (s *Store) countsBy(ctx context.Context, column string, since *time.Time, limit int) ([]CountItem, error) {
	where := ""
	args := []interface{}{}
	if since != nil {
		where = "WHERE timestamp >= $1"
		args = append(args, *since)
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS count
		FROM attacks
		%s
		GROUP BY %s
		ORDER BY count DESC
	`, column, where, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attacks by %s: %w", column, err)
	}
	defer rows.Close()

	items := []CountItem{}
	for rows.Next() {
		var item CountItem
		if err := rows.Scan(&item.Key, &item.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s aggregate: %w", column, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s aggregate: %w", column, err)
	}

	return items, nil
}

// AttackStats aggregates attack records, optionally restricted to records
// at or after since.
func (s *Store) AttackStats(ctx context.Context, since *time.Time) (*AttackStats, error) {
	stats := &AttackStats{}

	where := ""
	args := []interface{}{}
	if since != nil {
		where = "WHERE timestamp >= $1"
		args = append(args, *since)
	}

	totalsQuery := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT resolved)
		FROM attacks
		%s
	`, where)
	if err := s.pool.QueryRow(ctx, totalsQuery, args...).Scan(&stats.Total, &stats.Unresolved); err != nil {
		return nil, fmt.Errorf("failed to count attacks: %w", err)
	}

	var err error
	if stats.BySeverity, err = s.countsBy(ctx, "severity", since, 0); err != nil {
		return nil, err
	}
	if stats.ByCategory, err = s.countsBy(ctx, "category", since, 0); err != nil {
		return nil, err
	}
	if stats.TopSources, err = s.countsBy(ctx, "source_ip", since, 10); err != nil {
		return nil, err
	}
	if stats.TopPaths, err = s.countsBy(ctx, "target_path", since, 10); err != nil {
		return nil, err
	}

	return stats, nil
}

// AttackTimeline returns time-bucketed attack counts. interval must be
// "hour" or "day".
func (s *Store) AttackTimeline(ctx context.Context, interval string, since *time.Time) ([]TimeBucket, error) {
	if interval != "hour" && interval != "day" {
		return nil, fmt.Errorf("unsupported timeline interval %q", interval)
	}

	where := ""
	args := []interface{}{}
	if since != nil {
		where = "WHERE timestamp >= $1"
		args = append(args, *since)
	}

	query := fmt.Sprintf(`
		SELECT date_trunc('%s', timestamp) AS bucket, COUNT(*) AS count
		FROM attacks
		%s
		GROUP BY bucket
		ORDER BY bucket
	`, interval, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build attack timeline: %w", err)
	}
	defer rows.Close()

	buckets := []TimeBucket{}
	for rows.Next() {
		var b TimeBucket
		if err := rows.Scan(&b.Bucket, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan timeline bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timeline: %w", err)
	}

	return buckets, nil
}

// SetResolved marks an attack record resolved or unresolved. This is a label
// only; the pipeline never enforces anything.
func (s *Store) SetResolved(ctx context.Context, id int64, resolved bool) error {
	tag, err := s.pool.Exec(ctx, "UPDATE attacks SET resolved = $1 WHERE id = $2", resolved, id)
	if err != nil {
		return fmt.Errorf("failed to update attack %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBlocked marks an attack record's source as blocked. This is a label
// only; no enforcement action is taken.
func (s *Store) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	tag, err := s.pool.Exec(ctx, "UPDATE attacks SET blocked = $1 WHERE id = $2", blocked, id)
	if err != nil {
		return fmt.Errorf("failed to update attack %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
