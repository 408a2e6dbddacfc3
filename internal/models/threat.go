package models

import "time"

// Attack categories produced by the signature detector.
const (
	CategorySQLInjection     = "SQL Injection"
	CategoryXSS              = "XSS"
	CategoryPathTraversal    = "Path Traversal"
	CategoryCommandInjection = "Command Injection"
	CategoryWebShell         = "Web Shell"
	CategorySuspiciousAccess = "Suspicious Access"
	CategorySSHBruteForce    = "SSH Brute Force"
	CategoryPortScan         = "Port Scan"
)

// ThreatMatch is one positive signature classification of a piece of text.
// Produced transiently per analyzed request; zero or more per AccessEvent.
type ThreatMatch struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Pattern     string   `json:"pattern"`
	Description string   `json:"description"`
}

// AttackRecord is a persisted threat linked back to the log event that
// triggered it. The Resolved and Blocked flags are labels mutated only
// through the API; the pipeline never updates a record after insert.
type AttackRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Category    string    `json:"category"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	SourceIP    string    `json:"source_ip,omitempty"`
	TargetPath  string    `json:"target_path,omitempty"`
	Method      string    `json:"method,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
	RawRequest  string    `json:"raw_request,omitempty"`
	Blocked     bool      `json:"blocked"`
	Resolved    bool      `json:"resolved"`
	RelatedKind string    `json:"related_kind,omitempty"`
	RelatedID   *int64    `json:"related_event_id,omitempty"`
}
