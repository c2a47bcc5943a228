package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsFileAndEnv(t *testing.T) {
	t.Setenv("SUPPORT_CHAT_DB_DRIVER", "sqlite")
	t.Setenv("SUPPORT_CHAT_RATE_LIMIT_WRITE_LIMIT", "5")
	t.Setenv("SUPPORT_CHAT_REALTIME_MODE", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 5, cfg.RateLimit.WriteLimit)
	assert.Equal(t, 60, cfg.RateLimit.ReadLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "off", cfg.Realtime.Mode)
	assert.Equal(t, 3*time.Second, cfg.Realtime.PublishTimeout)
	assert.Equal(t, 240*time.Hour, cfg.JWT.TTL)
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	// 只有 config.yaml 內的開發用密鑰
	t.Setenv("SUPPORT_CHAT_ENV", "production")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SUPPORT_CHAT_JWT_SECRET", "prod-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
}
