package parser

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/metrics"
	"github.com/logsentry/logsentry/internal/models"
)

// sshEventPatterns are matched against the message part of an auth-log line
// in priority order; the first match wins.
var sshEventPatterns = []struct {
	eventType string
	re        *regexp.Regexp
}{
	{models.SSHEventAccepted, regexp.MustCompile(`Accepted (?P<method>\w+) for (?P<user>\S+) from (?P<ip>[\d.]+) port (?P<port>\d+)`)},
	{models.SSHEventFailed, regexp.MustCompile(`Failed (?P<method>\w+) for (?P<user>\S+) from (?P<ip>[\d.]+) port (?P<port>\d+)`)},
	{models.SSHEventInvalidUser, regexp.MustCompile(`Invalid user (?P<user>\S+) from (?P<ip>[\d.]+) port (?P<port>\d+)`)},
	{models.SSHEventDisconnected, regexp.MustCompile(`Disconnected from (?:invalid user )?(?:(?P<user>\S+)\s+)?(?P<ip>[\d.]+) port (?P<port>\d+)`)},
	{models.SSHEventConnectionClosed, regexp.MustCompile(`Connection closed by (?:invalid user )?(?:(?P<user>\S+)\s+)?(?P<ip>[\d.]+) port (?P<port>\d+)`)},
	{models.SSHEventSessionOpened, regexp.MustCompile(`pam_unix\(sshd:session\): session opened for user (?P<user>\S+)`)},
	{models.SSHEventSessionClosed, regexp.MustCompile(`pam_unix\(sshd:session\): session closed for user (?P<user>\S+)`)},
}

// Syslog timestamps carry no year; both classic and ISO-style prefixes occur.
var sshTimestampLayouts = []string{
	"Jan 2 15:04:05",
	"2006-01-02 15:04:05",
}

// SSHParser decodes SSH auth-log lines (auth.log, secure).
type SSHParser struct {
	store   EventStore
	tracker FailureTracker
	alerts  AlertSink
	log     *logging.Logger
}

// NewSSHParser creates an SSH auth-log parser. tracker and alerts may be nil
// when volume detection or alert publication is disabled.
func NewSSHParser(store EventStore, tracker FailureTracker, alerts AlertSink, log *logging.Logger) *SSHParser {
	return &SSHParser{store: store, tracker: tracker, alerts: alerts, log: log}
}

// Name returns the log kind this parser understands.
func (p *SSHParser) Name() string { return models.KindSSH }

// Parse decodes one auth-log line. Lines under 10 characters or with fewer
// than 5 whitespace-separated tokens do not parse.
func (p *SSHParser) Parse(line string) (*models.SSHEvent, bool) {
	if len(line) < 10 {
		return nil, false
	}

	parts := strings.Fields(line)
	if len(parts) < 5 {
		return nil, false
	}

	ev := &models.SSHEvent{
		EventType: models.SSHEventUnknown,
		Status:    models.StatusUnknown,
		RawLine:   line,
	}

	// First three tokens are the timestamp, 4th the host, 5th process[pid]:
	if ts, ok := parseTimestamp(strings.Join(parts[0:3], " "), sshTimestampLayouts); ok {
		ev.LogTimestamp = &ts
	}
	ev.Host = parts[3]

	proc := parts[4]
	if i := strings.Index(proc, "["); i >= 0 {
		ev.Process = strings.TrimSuffix(proc[:i], ":")
		if j := strings.Index(proc[i:], "]"); j > 1 {
			if pid, err := strconv.Atoi(proc[i+1 : i+j]); err == nil {
				ev.PID = &pid
			}
		}
	} else {
		ev.Process = strings.TrimSuffix(proc, ":")
	}

	message := strings.Join(parts[5:], " ")

	for _, pat := range sshEventPatterns {
		match := pat.re.FindStringSubmatch(message)
		if match == nil {
			continue
		}

		data := groups(pat.re, match)
		ev.EventType = pat.eventType
		ev.Username = data["user"]
		ev.IPAddress = data["ip"]
		ev.AuthMethod = data["method"]
		if data["port"] != "" {
			if port, err := strconv.Atoi(data["port"]); err == nil {
				ev.Port = &port
			}
		}

		switch pat.eventType {
		case models.SSHEventAccepted:
			ev.Status = models.StatusSuccess
		case models.SSHEventFailed, models.SSHEventInvalidUser:
			ev.Status = models.StatusFailed
			ev.IsSuspicious = true
		case models.SSHEventSessionOpened, models.SSHEventSessionClosed:
			ev.Status = models.StatusSession
		default:
			ev.Status = models.StatusClosed
		}
		break
	}

	// Independent of the event pattern, certain source addresses are never
	// legitimate in an auth log.
	if ev.IPAddress != "" && suspiciousIP(ev.IPAddress) {
		ev.IsSuspicious = true
	}

	return ev, true
}

// ProcessLine decodes and persists one line, then feeds the failure tracker.
func (p *SSHParser) ProcessLine(ctx context.Context, line string) (bool, error) {
	ev, ok := p.Parse(strings.TrimSpace(line))
	if !ok {
		return false, nil
	}

	id, err := p.store.SaveSSHEvent(ctx, ev)
	if err != nil {
		return false, err
	}
	metrics.EventsPersisted.WithLabelValues(models.KindSSH).Inc()

	p.track(ctx, ev, id)
	return true, nil
}

// track records failed logins and pre-auth connection churn with the volume
// tracker and persists any resulting threat. Tracker errors degrade to a log
// line: volume detection never fails the event that triggered it.
func (p *SSHParser) track(ctx context.Context, ev *models.SSHEvent, eventID int64) {
	if p.tracker == nil || ev.IPAddress == "" {
		return
	}

	// Windowing is by observation time: syslog timestamps carry no year and
	// backlog lines may be arbitrarily old.
	at := time.Now().UTC()

	if ev.Status == models.StatusFailed {
		match, ok, err := p.tracker.RecordFailure(ctx, ev.IPAddress, ev.Username, at)
		if err != nil {
			p.log.WarnContext(ctx, "failure tracking unavailable", logging.IP(ev.IPAddress), logging.Error(err))
		} else if ok {
			p.saveVolumeAttack(ctx, match, ev, eventID)
		}
	}

	switch ev.EventType {
	case models.SSHEventFailed, models.SSHEventInvalidUser,
		models.SSHEventDisconnected, models.SSHEventConnectionClosed:
		port := 0
		if ev.Port != nil {
			port = *ev.Port
		}
		match, ok, err := p.tracker.RecordConnection(ctx, ev.IPAddress, port, at)
		if err != nil {
			p.log.WarnContext(ctx, "connection tracking unavailable", logging.IP(ev.IPAddress), logging.Error(err))
		} else if ok {
			p.saveVolumeAttack(ctx, match, ev, eventID)
		}
	}
}

func (p *SSHParser) saveVolumeAttack(ctx context.Context, match models.ThreatMatch, ev *models.SSHEvent, eventID int64) {
	rec := &models.AttackRecord{
		Category:    match.Category,
		Severity:    match.Severity,
		Description: match.Description,
		SourceIP:    ev.IPAddress,
		RawRequest:  ev.RawLine,
		RelatedKind: models.KindSSH,
		RelatedID:   &eventID,
	}

	id, err := p.store.SaveAttack(ctx, rec)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to save attack record",
			logging.Category(match.Category), logging.IP(ev.IPAddress), logging.Error(err))
		return
	}
	rec.ID = id
	metrics.ThreatsDetected.WithLabelValues(match.Category, string(match.Severity)).Inc()

	p.log.WarnContext(ctx, "volume-based threat detected",
		logging.Category(match.Category),
		logging.Severity(string(match.Severity)),
		logging.IP(ev.IPAddress),
		logging.AttackID(id),
	)

	if p.alerts != nil {
		if err := p.alerts.Publish(ctx, rec); err != nil {
			p.log.WarnContext(ctx, "failed to publish attack alert", logging.AttackID(id), logging.Error(err))
		}
	}
}

// suspiciousIP flags addresses that should never initiate SSH traffic:
// the null address and loopback variants other than plain 127.0.0.1/::1.
func suspiciousIP(ip string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	if addr.IsUnspecified() {
		return true
	}
	return addr.IsLoopback() && ip != "127.0.0.1" && ip != "::1"
}
