package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/metrics"
	"github.com/logsentry/logsentry/internal/models"
)

// Anchored so the lazy message capture extends to the end of the line minus
// the optional client/server/request suffixes.
var errorLinePattern = regexp.MustCompile(
	`^(?P<timestamp>\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) ` +
		`\[(?P<level>\w+)\] ` +
		`(?P<pid>\d+)#(?P<tid>\d+): ` +
		`(?:\*(?P<connection>\d+) )?` +
		`(?P<message>.*?)` +
		`(?:, client: (?P<client>[\d.]+))?` +
		`(?:, server: (?P<server>\S+))?` +
		`(?:, request: "(?P<request>[^"]+)")?$`,
)

const errorTimestampLayout = "2006/01/02 15:04:05"

// ErrorParser decodes web-server error-log lines.
type ErrorParser struct {
	store EventStore
	log   *logging.Logger
}

// NewErrorParser creates an error-log parser.
func NewErrorParser(store EventStore, log *logging.Logger) *ErrorParser {
	return &ErrorParser{store: store, log: log}
}

// Name returns the log kind this parser understands.
func (p *ErrorParser) Name() string { return models.KindWebError }

// Parse decodes one error-log line. An unparsable timestamp is tolerated:
// the event is produced with LogTimestamp unset.
func (p *ErrorParser) Parse(line string) (*models.ErrorEvent, bool) {
	match := errorLinePattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}
	data := groups(errorLinePattern, match)

	ev := &models.ErrorEvent{
		Level:    data["level"],
		Message:  data["message"],
		ClientIP: data["client"],
		Server:   data["server"],
		Request:  data["request"],
		RawLine:  line,
	}

	if data["pid"] != "" {
		if pid, err := strconv.Atoi(data["pid"]); err == nil {
			ev.PID = &pid
		}
	}
	if data["tid"] != "" {
		if tid, err := strconv.Atoi(data["tid"]); err == nil {
			ev.TID = &tid
		}
	}

	if ts, ok := parseTimestamp(data["timestamp"], []string{errorTimestampLayout}); ok {
		ev.LogTimestamp = &ts
	}

	return ev, true
}

// ProcessLine decodes and persists one line.
func (p *ErrorParser) ProcessLine(ctx context.Context, line string) (bool, error) {
	ev, ok := p.Parse(strings.TrimSpace(line))
	if !ok {
		return false, nil
	}

	if _, err := p.store.SaveErrorEvent(ctx, ev); err != nil {
		return false, err
	}
	metrics.EventsPersisted.WithLabelValues(models.KindWebError).Inc()
	return true, nil
}
