package parser

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/logsentry/logsentry/internal/detector"
	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/metrics"
	"github.com/logsentry/logsentry/internal/models"
)

// Combined log format, with optional X-Forwarded-For and request/upstream
// timing fields as emitted by the standard nginx log_format extensions.
var accessLinePattern = regexp.MustCompile(
	`(?P<ip>[\d.]+) - (?P<remote_user>\S+) \[(?P<timestamp>[^\]]+)\] ` +
		`"(?P<method>\S+) (?P<path>\S+) (?P<protocol>\S+)" ` +
		`(?P<status>\d+) (?P<size>\d+|-) ` +
		`"(?P<referer>[^"]*)" "(?P<user_agent>[^"]*)"` +
		`(?: "(?P<forwarded>[^"]*)")?\s*` +
		`(?P<request_time>[\d.]+)?\s*(?P<upstream_time>[\d.]+)?`,
)

const accessTimestampLayout = "02/Jan/2006:15:04:05 -0700"

// AccessParser decodes web-server access-log lines and runs every decoded
// request through the signature detector.
type AccessParser struct {
	store  EventStore
	detect *detector.Detector
	alerts AlertSink
	log    *logging.Logger
}

// NewAccessParser creates an access-log parser. alerts may be nil when alert
// publication is disabled.
func NewAccessParser(store EventStore, detect *detector.Detector, alerts AlertSink, log *logging.Logger) *AccessParser {
	return &AccessParser{store: store, detect: detect, alerts: alerts, log: log}
}

// Name returns the log kind this parser understands.
func (p *AccessParser) Name() string { return models.KindWebAccess }

// Parse decodes one combined-format access-log line and attaches detector
// matches for the decoded method, path and user agent. An unparsable
// timestamp is tolerated: the event is produced with LogTimestamp unset.
func (p *AccessParser) Parse(line string) (*models.AccessEvent, bool) {
	match := accessLinePattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}
	data := groups(accessLinePattern, match)

	status, err := strconv.Atoi(data["status"])
	if err != nil {
		return nil, false
	}

	ev := &models.AccessEvent{
		IPAddress:  data["ip"],
		Method:     data["method"],
		Path:       data["path"],
		Protocol:   data["protocol"],
		StatusCode: status,
		RawLine:    line,
	}

	// "-" placeholders map to absent.
	if data["referer"] != "-" {
		ev.Referer = data["referer"]
	}
	if data["user_agent"] != "-" {
		ev.UserAgent = data["user_agent"]
	}

	if ts, ok := parseTimestamp(data["timestamp"], []string{accessTimestampLayout}); ok {
		ev.LogTimestamp = &ts
	}

	if data["size"] != "-" && data["size"] != "" {
		if size, err := strconv.ParseInt(data["size"], 10, 64); err == nil {
			ev.ResponseSize = &size
		}
	}
	if data["request_time"] != "" {
		if rt, err := strconv.ParseFloat(data["request_time"], 64); err == nil {
			ev.RequestTime = &rt
		}
	}
	if data["upstream_time"] != "" && data["upstream_time"] != "-" {
		if ut, err := strconv.ParseFloat(data["upstream_time"], 64); err == nil {
			ev.UpstreamTime = &ut
		}
	}

	ev.Threats = p.detect.Analyze(ev.Method, ev.Path, ev.UserAgent)

	return ev, true
}

// ProcessLine decodes and persists one line. Events that carry threats are
// stored through the atomic event-plus-attacks path; the derived attack
// records are then published to the alert sink.
func (p *AccessParser) ProcessLine(ctx context.Context, line string) (bool, error) {
	ev, ok := p.Parse(strings.TrimSpace(line))
	if !ok {
		return false, nil
	}

	if len(ev.Threats) == 0 {
		if _, err := p.store.SaveAccessEvent(ctx, ev); err != nil {
			return false, err
		}
		metrics.EventsPersisted.WithLabelValues(models.KindWebAccess).Inc()
		return true, nil
	}

	id, records, err := p.store.SaveAccessEventWithThreats(ctx, ev, ev.Threats)
	if err != nil {
		return false, err
	}
	metrics.EventsPersisted.WithLabelValues(models.KindWebAccess).Inc()

	p.log.WarnContext(ctx, "threats detected",
		logging.IP(ev.IPAddress),
		logging.Path(ev.Path),
		slog.Int("threats", len(records)),
		logging.EventID(id),
	)

	for i := range records {
		rec := &records[i]
		metrics.ThreatsDetected.WithLabelValues(rec.Category, string(rec.Severity)).Inc()
		p.log.WarnContext(ctx, "attack recorded",
			logging.Category(rec.Category),
			logging.Severity(string(rec.Severity)),
			logging.IP(rec.SourceIP),
			logging.AttackID(rec.ID),
		)
		if p.alerts != nil {
			if err := p.alerts.Publish(ctx, rec); err != nil {
				p.log.WarnContext(ctx, "failed to publish attack alert", logging.AttackID(rec.ID), logging.Error(err))
			}
		}
	}

	return true, nil
}
