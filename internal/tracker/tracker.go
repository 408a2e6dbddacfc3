// Package tracker keeps per-IP rolling windows of SSH failures and
// connections in Redis and feeds them to the volume detectors. State lives
// in Redis so a restart does not reset windows mid-attack.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/logsentry/logsentry/internal/detector"
	"github.com/logsentry/logsentry/internal/models"
)

const (
	failureKeyPrefix    = "logsentry:failures:"
	connectionKeyPrefix = "logsentry:connections:"
	suppressKeyPrefix   = "logsentry:suppress:"
)

// Tracker records SSH authentication failures and connection attempts per
// source IP and reports when a window crosses a volume threshold. Each
// detection is suppressed for one window length so a sustained attack
// produces one record, not one per line.
type Tracker struct {
	client *redis.Client
	detect *detector.Detector
	window time.Duration
}

// New connects to Redis and returns a Tracker wired to the given detector.
func New(redisURL string, detect *detector.Detector) (*Tracker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(client, detect), nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, detect *detector.Detector) *Tracker {
	return &Tracker{
		client: client,
		detect: detect,
		window: detect.BruteForceWindow(),
	}
}

// Close releases the Redis connection.
func (t *Tracker) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// RecordFailure adds one failed login to the IP's window and evaluates the
// brute-force detector over the remaining entries.
func (t *Tracker) RecordFailure(ctx context.Context, ip, username string, at time.Time) (models.ThreatMatch, bool, error) {
	key := failureKeyPrefix + ip
	member := fmt.Sprintf("%d:%s", at.UnixNano(), username)

	entries, err := t.windowEntries(ctx, key, member, at)
	if err != nil {
		return models.ThreatMatch{}, false, fmt.Errorf("failed to track login failure: %w", err)
	}

	attempts := make([]detector.FailedAttempt, 0, len(entries))
	for _, entry := range entries {
		nanos, user, ok := splitEntry(entry)
		if !ok {
			continue
		}
		attempts = append(attempts, detector.FailedAttempt{
			IP:        ip,
			Username:  user,
			Timestamp: time.Unix(0, nanos),
		})
	}

	threat, ok := t.detect.DetectBruteForce(attempts)
	if !ok {
		return models.ThreatMatch{}, false, nil
	}

	fresh, err := t.suppress(ctx, models.CategorySSHBruteForce, ip)
	if err != nil {
		return models.ThreatMatch{}, false, err
	}
	return threat, fresh, nil
}

// RecordConnection adds one connection attempt to the IP's window and
// evaluates the port-scan detector over the remaining entries.
func (t *Tracker) RecordConnection(ctx context.Context, ip string, port int, at time.Time) (models.ThreatMatch, bool, error) {
	key := connectionKeyPrefix + ip
	member := fmt.Sprintf("%d:%d", at.UnixNano(), port)

	entries, err := t.windowEntries(ctx, key, member, at)
	if err != nil {
		return models.ThreatMatch{}, false, fmt.Errorf("failed to track connection: %w", err)
	}

	attempts := make([]detector.ConnectionAttempt, 0, len(entries))
	for _, entry := range entries {
		nanos, portText, ok := splitEntry(entry)
		if !ok {
			continue
		}
		p, err := strconv.Atoi(portText)
		if err != nil {
			continue
		}
		attempts = append(attempts, detector.ConnectionAttempt{
			IP:        ip,
			Port:      p,
			Timestamp: time.Unix(0, nanos),
		})
	}

	threat, ok := t.detect.DetectPortScan(attempts)
	if !ok {
		return models.ThreatMatch{}, false, nil
	}

	fresh, err := t.suppress(ctx, models.CategoryPortScan, ip)
	if err != nil {
		return models.ThreatMatch{}, false, err
	}
	return threat, fresh, nil
}

// windowEntries adds member to the sorted set at key, trims entries older
// than the window and returns what remains.
func (t *Tracker) windowEntries(ctx context.Context, key, member string, at time.Time) ([]string, error) {
	windowStart := at.Add(-t.window).UnixNano()

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	entriesCmd := pipe.ZRange(ctx, key, 0, -1)
	pipe.Expire(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return entriesCmd.Val(), nil
}

// suppress reports whether this detection is the first for the category/IP
// pair within the current window.
func (t *Tracker) suppress(ctx context.Context, category, ip string) (bool, error) {
	key := suppressKeyPrefix + category + ":" + ip
	fresh, err := t.client.SetNX(ctx, key, "1", t.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check detection suppression: %w", err)
	}
	return fresh, nil
}

func splitEntry(entry string) (int64, string, bool) {
	idx := strings.IndexByte(entry, ':')
	if idx < 0 {
		return 0, "", false
	}
	nanos, err := strconv.ParseInt(entry[:idx], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return nanos, entry[idx+1:], true
}

// NoOp satisfies the tracker contract without any backing store. Volume
// detection is effectively disabled.
type NoOp struct{}

func (NoOp) RecordFailure(ctx context.Context, ip, username string, at time.Time) (models.ThreatMatch, bool, error) {
	return models.ThreatMatch{}, false, nil
}

func (NoOp) RecordConnection(ctx context.Context, ip string, port int, at time.Time) (models.ThreatMatch, bool, error) {
	return models.ThreatMatch{}, false, nil
}

func (NoOp) Close() error { return nil }
