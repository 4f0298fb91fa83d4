package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TASKFORGE_DATABASE_URL", "postgres://localhost/taskforge_test")
	t.Setenv("TASKFORGE_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TASKFORGE_AUTH_ADMIN_USERNAME", "admin")
	t.Setenv("TASKFORGE_AUTH_ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "redis", cfg.Queue.Broker)
	assert.Equal(t, "default", cfg.Queue.Name)
	assert.Equal(t, 10, cfg.Queue.Concurrency)
	assert.Equal(t, 30, cfg.Cleanup.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Cleanup.Schedule)
	assert.Equal(t, 60, cfg.Auth.TokenLifetimeMinutes)
	assert.False(t, cfg.Mail.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TASKFORGE_SERVER_PORT", "9090")
	t.Setenv("TASKFORGE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("TASKFORGE_QUEUE_BROKER", "memory")
	t.Setenv("TASKFORGE_CLEANUP_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "memory", cfg.Queue.Broker)
	assert.Equal(t, 7, cfg.Cleanup.RetentionDays)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TASKFORGE_DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TASKFORGE_SERVER_LOG_LEVEL", "loud")

	_, err := Load()
	assert.Error(t, err)
}

func TestMailEnabled(t *testing.T) {
	cfg := MailConfig{
		Host: "smtp.example.com",
		From: "tasks@example.com",
		To:   "ops@example.com",
	}
	assert.True(t, cfg.Enabled())

	cfg.Host = ""
	assert.False(t, cfg.Enabled())
}
