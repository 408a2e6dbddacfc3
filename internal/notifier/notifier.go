// Package notifier publishes attack records to the message bus so dashboard
// backends can push live alerts without polling the database.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/logsentry/logsentry/internal/models"
)

// Attack alert subjects follow the pattern logsentry.attacks.{severity}.
// Subscribers use logsentry.attacks.> to receive everything.
const subjectPrefix = "logsentry.attacks."

// AttackSubject returns the publish subject for a record of the given
// severity, e.g. logsentry.attacks.critical.
func AttackSubject(severity models.Severity) string {
	return subjectPrefix + strings.ToLower(string(severity))
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "logsentry",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Notifier publishes attack records over NATS.
type Notifier struct {
	conn *nats.Conn
}

// New connects to NATS with the given configuration.
func New(cfg Config) (*Notifier, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Notifier{conn: conn}, nil
}

// Publish sends one attack record as JSON to its severity subject.
func (n *Notifier) Publish(ctx context.Context, rec *models.AttackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal attack record: %w", err)
	}

	if err := n.conn.Publish(AttackSubject(rec.Severity), data); err != nil {
		return fmt.Errorf("failed to publish attack alert: %w", err)
	}
	return nil
}

// Close drains the connection, letting buffered messages flush.
func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Drain()
	}
}

// NoOp discards alerts; used when the message bus is disabled.
type NoOp struct{}

func (NoOp) Publish(ctx context.Context, rec *models.AttackRecord) error { return nil }

func (NoOp) Close() {}
