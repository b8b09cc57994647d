package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SPLITBOOK_JWT_SECRET", "secret")
	t.Setenv("SPLITBOOK_PORT", "")
	t.Setenv("SPLITBOOK_DB_PATH", "")
	t.Setenv("SPLITBOOK_TOKEN_TTL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "splitbook.db", cfg.DBPath)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SPLITBOOK_JWT_SECRET", "secret")
	t.Setenv("SPLITBOOK_PORT", "9999")
	t.Setenv("SPLITBOOK_LOG_FORMAT", "json")
	t.Setenv("SPLITBOOK_TOKEN_TTL", "1h")
	t.Setenv("SPLITBOOK_WS_ORIGINS", "app.example.com, *.example.org,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"app.example.com", "*.example.org"}, cfg.WSOrigins)
}

func TestFromEnvErrors(t *testing.T) {
	t.Setenv("SPLITBOOK_JWT_SECRET", "")
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingSecret)

	t.Setenv("SPLITBOOK_JWT_SECRET", "secret")
	t.Setenv("SPLITBOOK_TOKEN_TTL", "forever")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("SPLITBOOK_TOKEN_TTL", "-1h")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnvBackup(t *testing.T) {
	t.Setenv("SPLITBOOK_JWT_SECRET", "secret")
	t.Setenv("SPLITBOOK_BACKUP_BUCKET", "ledger")
	t.Setenv("SPLITBOOK_BACKUP_INTERVAL", "6h")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ledger", cfg.Backup.Bucket)
	assert.Equal(t, "us-east-1", cfg.Backup.Region)
	assert.Equal(t, 6*time.Hour, cfg.Backup.Interval)
	assert.Equal(t, 720*time.Hour, cfg.Backup.Retention)

	t.Setenv("SPLITBOOK_BACKUP_RETENTION", "0s")
	_, err = FromEnv()
	assert.Error(t, err)
}
