package hse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRules(t *testing.T) {
	var r Rules
	for _, scope := range []string{"company", "vessel", "department"} {
		assert.True(t, r.IsValidScope(scope), scope)
	}
	assert.False(t, r.IsValidScope("fleet"))
	assert.False(t, r.IsValidScope(""))

	for _, sev := range []string{"low", "medium", "high", "critical"} {
		assert.True(t, r.IsValidSeverity(sev), sev)
	}
	assert.False(t, r.IsValidSeverity("CRITICAL"))
	assert.True(t, SeverityCritical.Urgent())
	assert.False(t, SeverityMedium.Urgent())
}
