package email

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_NewMessage(t *testing.T) {
	s := NewEmailSender("smtp.example", 587, "user", "pass", "noreply@fleet.example")

	m := s.newMessage("bosun@fleet.example", "Alert", "check the winch")

	assert.Equal(t, []string{"noreply@fleet.example"}, m.GetHeader("From"))
	assert.Equal(t, []string{"bosun@fleet.example"}, m.GetHeader("To"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "check the winch")
}
