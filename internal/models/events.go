package models

import "time"

// Log source kinds understood by the pipeline.
const (
	KindSSH       = "ssh"
	KindWebAccess = "web-access"
	KindWebError  = "web-error"
)

// SSH event types, in parser priority order.
const (
	SSHEventAccepted         = "accepted"
	SSHEventFailed           = "failed"
	SSHEventInvalidUser      = "invalid_user"
	SSHEventDisconnected     = "disconnected"
	SSHEventConnectionClosed = "connection_closed"
	SSHEventSessionOpened    = "session_opened"
	SSHEventSessionClosed    = "session_closed"
	SSHEventUnknown          = "unknown"
)

// SSH event statuses derived from the event type.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSession = "session"
	StatusClosed  = "closed"
	StatusUnknown = "unknown"
)

// SSHEvent is the structured decode of one SSH auth-log line.
type SSHEvent struct {
	ID           int64      `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	LogTimestamp *time.Time `json:"log_timestamp,omitempty"`
	Host         string     `json:"host"`
	Process      string     `json:"process"`
	PID          *int       `json:"pid,omitempty"`
	EventType    string     `json:"event_type"`
	Username     string     `json:"username,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	Port         *int       `json:"port,omitempty"`
	AuthMethod   string     `json:"auth_method,omitempty"`
	Status       string     `json:"status"`
	IsSuspicious bool       `json:"is_suspicious"`
	RawLine      string     `json:"raw_line"`
}

// AccessEvent is the structured decode of one web-server access-log line
// (combined log format). Threats holds the detector matches attached at
// parse time; they are persisted as AttackRecords, not as event columns.
type AccessEvent struct {
	ID           int64      `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	LogTimestamp *time.Time `json:"log_timestamp,omitempty"`
	IPAddress    string     `json:"ip_address"`
	Method       string     `json:"method"`
	Path         string     `json:"path"`
	Protocol     string     `json:"protocol"`
	StatusCode   int        `json:"status_code"`
	ResponseSize *int64     `json:"response_size,omitempty"`
	Referer      string     `json:"referer,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	RequestTime  *float64   `json:"request_time,omitempty"`
	UpstreamTime *float64   `json:"upstream_time,omitempty"`
	RawLine      string     `json:"raw_line"`

	Threats []ThreatMatch `json:"threats,omitempty"`
}

// ErrorEvent is the structured decode of one web-server error-log line.
type ErrorEvent struct {
	ID           int64      `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	LogTimestamp *time.Time `json:"log_timestamp,omitempty"`
	Level        string     `json:"level"`
	PID          *int       `json:"pid,omitempty"`
	TID          *int       `json:"tid,omitempty"`
	ClientIP     string     `json:"client_ip,omitempty"`
	Server       string     `json:"server,omitempty"`
	Request      string     `json:"request,omitempty"`
	Message      string     `json:"message"`
	RawLine      string     `json:"raw_line"`
}
