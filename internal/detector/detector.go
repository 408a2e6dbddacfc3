// Package detector classifies request text against known attack signatures.
//
// The Detector is stateless: it holds compiled patterns and thresholds only,
// so a single instance is shared read-only across all pipeline workers.
package detector

import (
	"fmt"
	"regexp"
	"time"

	"github.com/logsentry/logsentry/internal/models"
)

// signature is one fixed pattern within a category. The raw expression is
// kept alongside the compiled form because it is persisted verbatim on
// attack records.
type signature struct {
	expr string
	re   *regexp.Regexp
}

func compile(exprs []string) []signature {
	sigs := make([]signature, 0, len(exprs))
	for _, expr := range exprs {
		sigs = append(sigs, signature{
			expr: expr,
			re:   regexp.MustCompile("(?i)" + expr),
		})
	}
	return sigs
}

var sqlInjectionPatterns = []string{
	`(\bunion\b.*\bselect\b)`,
	`(\bselect\b.*\bfrom\b.*\bwhere\b)`,
	`('+\s*or\s*'1'\s*=\s*'1)`,
	`(--|#|/\*)`,
	`(\bexec\b|\bexecute\b)`,
	`(\bdrop\b\s+\btable\b)`,
	`(\binsert\b\s+\binto\b)`,
	`(\bdelete\b\s+\bfrom\b)`,
	`(\bupdate\b.*\bset\b)`,
	`(\bor\b\s+\d+\s*=\s*\d+)`,
	`(';--)`,
	`(\bxp_cmdshell\b)`,
}

var xssPatterns = []string{
	`<script[^>]*>.*?</script>`,
	`javascript:`,
	`onerror\s*=`,
	`onload\s*=`,
	`onclick\s*=`,
	`<iframe`,
	`<object`,
	`<embed`,
	`eval\s*\(`,
	`alert\s*\(`,
	`document\.cookie`,
	`document\.write`,
}

var pathTraversalPatterns = []string{
	`\.\./`,
	`\.\.\\`,
	`%2e%2e/`,
	`%252e%252e/`,
	`\.\.%2f`,
}

var commandInjectionPatterns = []string{
	`;\s*(ls|cat|wget|curl|bash|sh|nc|netcat)`,
	`\|\s*(ls|cat|wget|curl|bash|sh|nc)`,
	"`.*`",
	`\$\(.*\)`,
	`&&\s*(ls|cat|wget|curl)`,
}

var webShellPatterns = []string{
	`c99\.php`,
	`r57\.php`,
	`shell\.php`,
	`cmd\.php`,
	`backdoor\.php`,
	`phpshell`,
	`webshell`,
	`\.php\?cmd=`,
}

var suspiciousPathPatterns = []string{
	`/admin\.php`,
	`/phpmyadmin`,
	`/wp-admin`,
	`/wp-login\.php`,
	`/wp-config\.php`,
	`/\.env`,
	`/\.git`,
	`/config\.php`,
	`/db\.php`,
	`/database\.php`,
	`/backup`,
	`/xmlrpc\.php`,
	`/\.aws/credentials`,
}

// Config holds thresholds for the volume-based probes. The signature probes
// are fixed and not configurable.
type Config struct {
	// BruteForceThreshold is the number of failed attempts within the
	// rolling window that constitutes a brute-force attack.
	BruteForceThreshold int
	// BruteForceWindow is the rolling window the pipeline should aggregate
	// failed attempts over before calling DetectBruteForce.
	BruteForceWindow time.Duration
	// PortScanMinConnections is the minimum connection attempts from one
	// source before a port scan is considered.
	PortScanMinConnections int
	// PortScanMinPorts is the minimum distinct target ports among those
	// connections.
	PortScanMinPorts int
}

// DefaultConfig returns the stock detection thresholds.
func DefaultConfig() Config {
	return Config{
		BruteForceThreshold:    5,
		BruteForceWindow:       300 * time.Second,
		PortScanMinConnections: 10,
		PortScanMinPorts:       5,
	}
}

// Detector matches text against fixed attack-signature lists. All probes are
// deterministic and side-effect free.
type Detector struct {
	cfg Config

	sqlInjection     []signature
	xss              []signature
	pathTraversal    []signature
	commandInjection []signature
	webShell         []signature
	suspiciousPaths  []signature
}

// New creates a Detector with the given thresholds. Zero-valued thresholds
// fall back to the defaults.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.BruteForceThreshold <= 0 {
		cfg.BruteForceThreshold = def.BruteForceThreshold
	}
	if cfg.BruteForceWindow <= 0 {
		cfg.BruteForceWindow = def.BruteForceWindow
	}
	if cfg.PortScanMinConnections <= 0 {
		cfg.PortScanMinConnections = def.PortScanMinConnections
	}
	if cfg.PortScanMinPorts <= 0 {
		cfg.PortScanMinPorts = def.PortScanMinPorts
	}

	return &Detector{
		cfg:              cfg,
		sqlInjection:     compile(sqlInjectionPatterns),
		xss:              compile(xssPatterns),
		pathTraversal:    compile(pathTraversalPatterns),
		commandInjection: compile(commandInjectionPatterns),
		webShell:         compile(webShellPatterns),
		suspiciousPaths:  compile(suspiciousPathPatterns),
	}
}

// BruteForceWindow returns the rolling window callers should aggregate
// failed attempts over.
func (d *Detector) BruteForceWindow() time.Duration {
	return d.cfg.BruteForceWindow
}

func match(sigs []signature, text, category string, severity models.Severity, description string) (models.ThreatMatch, bool) {
	for _, sig := range sigs {
		if sig.re.MatchString(text) {
			return models.ThreatMatch{
				Category:    category,
				Severity:    severity,
				Pattern:     sig.expr,
				Description: description,
			}, true
		}
	}
	return models.ThreatMatch{}, false
}

// DetectSQLInjection reports the first SQL-injection signature matching text.
func (d *Detector) DetectSQLInjection(text string) (models.ThreatMatch, bool) {
	return match(d.sqlInjection, text, models.CategorySQLInjection, models.SeverityHigh,
		"Possible SQL injection attempt detected")
}

// DetectXSS reports the first cross-site-scripting signature matching text.
func (d *Detector) DetectXSS(text string) (models.ThreatMatch, bool) {
	return match(d.xss, text, models.CategoryXSS, models.SeverityHigh,
		"Possible XSS attack detected")
}

// DetectPathTraversal reports the first directory-traversal signature
// matching text.
func (d *Detector) DetectPathTraversal(text string) (models.ThreatMatch, bool) {
	return match(d.pathTraversal, text, models.CategoryPathTraversal, models.SeverityMedium,
		"Directory traversal attempt detected")
}

// DetectCommandInjection reports the first OS-command-injection signature
// matching text.
func (d *Detector) DetectCommandInjection(text string) (models.ThreatMatch, bool) {
	return match(d.commandInjection, text, models.CategoryCommandInjection, models.SeverityCritical,
		"OS command injection attempt detected")
}

// DetectWebShell reports the first web-shell signature matching text.
func (d *Detector) DetectWebShell(text string) (models.ThreatMatch, bool) {
	return match(d.webShell, text, models.CategoryWebShell, models.SeverityCritical,
		"Web shell access attempt detected")
}

// DetectSuspiciousPath reports whether path touches a known sensitive
// location.
func (d *Detector) DetectSuspiciousPath(path string) (models.ThreatMatch, bool) {
	return match(d.suspiciousPaths, path, models.CategorySuspiciousAccess, models.SeverityMedium,
		"Access to sensitive/suspicious path")
}

// Analyze runs every probe against an HTTP request and returns all positive
// matches in fixed category order: SQL Injection, XSS, Path Traversal,
// Command Injection, Web Shell, Suspicious Access. No probe short-circuits
// another; a single request may carry several classifications at once.
//
// The text-oriented probes see method, path and user agent concatenated;
// the path-oriented probes see the path alone.
func (d *Detector) Analyze(method, path, userAgent string) []models.ThreatMatch {
	fullRequest := method + " " + path
	if userAgent != "" {
		fullRequest += " " + userAgent
	}

	var threats []models.ThreatMatch

	if m, ok := d.DetectSQLInjection(fullRequest); ok {
		threats = append(threats, m)
	}
	if m, ok := d.DetectXSS(fullRequest); ok {
		threats = append(threats, m)
	}
	if m, ok := d.DetectPathTraversal(path); ok {
		threats = append(threats, m)
	}
	if m, ok := d.DetectCommandInjection(fullRequest); ok {
		threats = append(threats, m)
	}
	if m, ok := d.DetectWebShell(path); ok {
		threats = append(threats, m)
	}
	if m, ok := d.DetectSuspiciousPath(path); ok {
		threats = append(threats, m)
	}

	return threats
}

// FailedAttempt is one failed login observed by the pipeline.
type FailedAttempt struct {
	IP        string
	Username  string
	Timestamp time.Time
}

// ConnectionAttempt is one connection observed from a single source IP.
type ConnectionAttempt struct {
	IP        string
	Port      int
	Timestamp time.Time
}

// DetectBruteForce classifies a window of failed login attempts. The caller
// is responsible for windowing: attempts should already be restricted to the
// rolling window (see BruteForceWindow).
func (d *Detector) DetectBruteForce(attempts []FailedAttempt) (models.ThreatMatch, bool) {
	if len(attempts) < d.cfg.BruteForceThreshold {
		return models.ThreatMatch{}, false
	}
	return models.ThreatMatch{
		Category:    models.CategorySSHBruteForce,
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("%d failed login attempts detected", len(attempts)),
	}, true
}

// DetectPortScan classifies connection attempts from one source. A scan is
// reported when the attempt count and the number of distinct target ports
// both exceed their thresholds.
func (d *Detector) DetectPortScan(conns []ConnectionAttempt) (models.ThreatMatch, bool) {
	if len(conns) < d.cfg.PortScanMinConnections {
		return models.ThreatMatch{}, false
	}

	ports := make(map[int]struct{}, len(conns))
	for _, c := range conns {
		if c.Port > 0 {
			ports[c.Port] = struct{}{}
		}
	}
	if len(ports) < d.cfg.PortScanMinPorts {
		return models.ThreatMatch{}, false
	}

	return models.ThreatMatch{
		Category:    models.CategoryPortScan,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("Port scanning detected: %d different ports", len(ports)),
	}, true
}
