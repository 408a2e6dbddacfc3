// Package storage persists structured log events and attack records to
// PostgreSQL and serves the dashboard queries over them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logsentry/logsentry/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the PostgreSQL-backed persistence adapter. It serializes its own
// writes through the connection pool; callers need no external locking.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store connected to the given PostgreSQL DSN.
func New(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool; used by tests.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSSHEvent inserts one SSH event and returns its ID.
func (s *Store) SaveSSHEvent(ctx context.Context, ev *models.SSHEvent) (int64, error) {
	query := `
		INSERT INTO ssh_events (
			log_timestamp, host, process, pid, event_type, username,
			ip_address, port, auth_method, status, is_suspicious, raw_line
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, timestamp
	`

	err := s.pool.QueryRow(ctx, query,
		ev.LogTimestamp, ev.Host, ev.Process, ev.PID, ev.EventType, ev.Username,
		ev.IPAddress, ev.Port, ev.AuthMethod, ev.Status, ev.IsSuspicious, ev.RawLine,
	).Scan(&ev.ID, &ev.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to save ssh event: %w", err)
	}

	return ev.ID, nil
}

// SaveAccessEvent inserts one access event without attack records.
func (s *Store) SaveAccessEvent(ctx context.Context, ev *models.AccessEvent) (int64, error) {
	query := `
		INSERT INTO access_events (
			log_timestamp, ip_address, method, path, protocol, status_code,
			response_size, referer, user_agent, request_time, upstream_time, raw_line
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, timestamp
	`

	err := s.pool.QueryRow(ctx, query,
		ev.LogTimestamp, ev.IPAddress, ev.Method, ev.Path, ev.Protocol, ev.StatusCode,
		ev.ResponseSize, ev.Referer, ev.UserAgent, ev.RequestTime, ev.UpstreamTime, ev.RawLine,
	).Scan(&ev.ID, &ev.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to save access event: %w", err)
	}

	return ev.ID, nil
}

// SaveAccessEventWithThreats inserts an access event and one attack record
// per threat in a single transaction: either everything commits or nothing
// does. The returned records carry their assigned IDs and the back-reference
// to the event.
func (s *Store) SaveAccessEventWithThreats(ctx context.Context, ev *models.AccessEvent, threats []models.ThreatMatch) (int64, []models.AttackRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	eventQuery := `
		INSERT INTO access_events (
			log_timestamp, ip_address, method, path, protocol, status_code,
			response_size, referer, user_agent, request_time, upstream_time, raw_line
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, timestamp
	`

	err = tx.QueryRow(ctx, eventQuery,
		ev.LogTimestamp, ev.IPAddress, ev.Method, ev.Path, ev.Protocol, ev.StatusCode,
		ev.ResponseSize, ev.Referer, ev.UserAgent, ev.RequestTime, ev.UpstreamTime, ev.RawLine,
	).Scan(&ev.ID, &ev.Timestamp)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to save access event: %w", err)
	}

	attackQuery := `
		INSERT INTO attacks (
			category, severity, description, source_ip, target_path, method,
			user_agent, pattern, raw_request, related_kind, related_event_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, timestamp
	`

	records := make([]models.AttackRecord, 0, len(threats))
	for _, threat := range threats {
		rec := models.AttackRecord{
			Category:    threat.Category,
			Severity:    threat.Severity,
			Description: threat.Description,
			SourceIP:    ev.IPAddress,
			TargetPath:  ev.Path,
			Method:      ev.Method,
			UserAgent:   ev.UserAgent,
			Pattern:     threat.Pattern,
			RawRequest:  ev.RawLine,
			RelatedKind: models.KindWebAccess,
			RelatedID:   &ev.ID,
		}

		err = tx.QueryRow(ctx, attackQuery,
			rec.Category, rec.Severity, rec.Description, rec.SourceIP, rec.TargetPath,
			rec.Method, rec.UserAgent, rec.Pattern, rec.RawRequest, rec.RelatedKind, rec.RelatedID,
		).Scan(&rec.ID, &rec.Timestamp)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to save attack record: %w", err)
		}

		records = append(records, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("failed to commit event with threats: %w", err)
	}

	return ev.ID, records, nil
}

// SaveErrorEvent inserts one error event and returns its ID.
func (s *Store) SaveErrorEvent(ctx context.Context, ev *models.ErrorEvent) (int64, error) {
	query := `
		INSERT INTO error_events (
			log_timestamp, level, pid, tid, client_ip, server, request, message, raw_line
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, timestamp
	`

	err := s.pool.QueryRow(ctx, query,
		ev.LogTimestamp, ev.Level, ev.PID, ev.TID, ev.ClientIP, ev.Server,
		ev.Request, ev.Message, ev.RawLine,
	).Scan(&ev.ID, &ev.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to save error event: %w", err)
	}

	return ev.ID, nil
}

// SaveAttack inserts a standalone attack record (volume-based detections not
// tied to an access event in the same transaction).
func (s *Store) SaveAttack(ctx context.Context, rec *models.AttackRecord) (int64, error) {
	query := `
		INSERT INTO attacks (
			category, severity, description, source_ip, target_path, method,
			user_agent, pattern, raw_request, related_kind, related_event_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, timestamp
	`

	err := s.pool.QueryRow(ctx, query,
		rec.Category, rec.Severity, rec.Description, rec.SourceIP, rec.TargetPath,
		rec.Method, rec.UserAgent, rec.Pattern, rec.RawRequest, rec.RelatedKind, rec.RelatedID,
	).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to save attack record: %w", err)
	}

	return rec.ID, nil
}
