package notifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logsentry/logsentry/internal/models"
)

func TestAttackSubject(t *testing.T) {
	tests := []struct {
		severity models.Severity
		expected string
	}{
		{models.SeverityLow, "logsentry.attacks.low"},
		{models.SeverityMedium, "logsentry.attacks.medium"},
		{models.SeverityHigh, "logsentry.attacks.high"},
		{models.SeverityCritical, "logsentry.attacks.critical"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, AttackSubject(tt.severity))
	}
}

func TestNoOpPublish(t *testing.T) {
	var n NoOp
	err := n.Publish(context.Background(), &models.AttackRecord{Severity: models.SeverityHigh})
	assert.NoError(t, err)
}
