package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	for _, key := range []string{
		"PORT", "GRPC_PORT", "REDIS_ADDR", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_FROM",
		"HEARTBEAT_INTERVAL", "WS_ALLOWED_ORIGINS", "WS_INSECURE_SKIP_VERIFY", "WS_EVENTS_PER_SECOND",
		"WS_EVENT_BURST", "WS_SEND_BUFFER", "NOTIFY_WORKERS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DATABASE_URL", "postgres://crew@localhost/crewlink?sslmode=disable")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_USERNAME", "ops@fleet.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8443", cfg.Port)
	assert.Equal(t, "9090", cfg.GRPCPort)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "ops@fleet.example", cfg.SMTPFrom)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, float64(20), cfg.EventsPerSecond)
	assert.Equal(t, 40, cfg.EventBurst)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.False(t, cfg.WSInsecureSkipVerify)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HEARTBEAT_INTERVAL", "5s")
	t.Setenv("WS_ALLOWED_ORIGINS", "app.fleet.example, *.crew.example,")
	t.Setenv("WS_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("WS_EVENTS_PER_SECOND", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, []string{"app.fleet.example", "*.crew.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.WSInsecureSkipVerify)
	assert.Equal(t, float64(5), cfg.EventsPerSecond)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{"DATABASE_URL": "", "JWT_SECRET": "x"}, "DATABASE_URL is required"},
		{"missing secret", map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": ""}, "JWT_SECRET is required"},
		{"bad port", map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "x", "SMTP_PORT": "smtp"}, "invalid SMTP_PORT"},
		{"bad heartbeat", map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "x", "HEARTBEAT_INTERVAL": "often"}, "invalid HEARTBEAT_INTERVAL"},
		{"negative heartbeat", map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "x", "HEARTBEAT_INTERVAL": "-1s"}, "HEARTBEAT_INTERVAL must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
