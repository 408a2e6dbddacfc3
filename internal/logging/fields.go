package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldComponent = "component"
	FieldSource    = "source"
	FieldPath      = "path"
	FieldIP        = "ip"
	FieldCategory  = "category"
	FieldSeverity  = "severity"
	FieldLines     = "lines"
	FieldOffset    = "offset"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldAttackID  = "attack_id"
)

// Component returns a slog attribute for the component name.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Source returns a slog attribute for a log source name.
func Source(name string) slog.Attr {
	return slog.String(FieldSource, name)
}

// Path returns a slog attribute for a file or request path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// IP returns a slog attribute for an IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Category returns a slog attribute for an attack category.
func Category(category string) slog.Attr {
	return slog.String(FieldCategory, category)
}

// Severity returns a slog attribute for a threat severity.
func Severity(severity string) slog.Attr {
	return slog.String(FieldSeverity, severity)
}

// Lines returns a slog attribute for a line count.
func Lines(n int) slog.Attr {
	return slog.Int(FieldLines, n)
}

// Offset returns a slog attribute for a file byte offset.
func Offset(off int64) slog.Attr {
	return slog.Int64(FieldOffset, off)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for a persisted event ID.
func EventID(id int64) slog.Attr {
	return slog.Int64(FieldEventID, id)
}

// AttackID returns a slog attribute for an attack record ID.
func AttackID(id int64) slog.Attr {
	return slog.Int64(FieldAttackID, id)
}
