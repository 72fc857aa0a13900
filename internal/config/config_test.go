package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "payrecon.db", cfg.DB.Path)
	assert.Equal(t, 5.0, cfg.Ledger.RatePerSec)
	assert.Equal(t, 200, cfg.Ledger.MaxPages)
	assert.Equal(t, 80, cfg.Matcher.MatchThreshold)
	assert.Equal(t, 50, cfg.Matcher.PartialThreshold)
	assert.Equal(t, 1.0, cfg.Matcher.AmountTolerance)
	assert.Equal(t, 720*time.Hour, cfg.Matcher.DateTolerance)
	assert.Equal(t, 3, cfg.Writer.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Writer.MaxBackoff)
	assert.False(t, cfg.Writer.DryRun)
	assert.Equal(t, "*.txt", cfg.Source.Pattern)
	assert.False(t, cfg.S3.Enabled)
	assert.Equal(t, "noop", cfg.Email.Provider)
	assert.Empty(t, cfg.Email.Recipients)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAYRECON_SERVER_PORT", ":9090")
	t.Setenv("PAYRECON_LEDGER_BASE_URL", "https://ledger.example.com")
	t.Setenv("PAYRECON_MATCHER_MATCH_THRESHOLD", "90")
	t.Setenv("PAYRECON_WRITER_DRY_RUN", "true")
	t.Setenv("PAYRECON_EMAIL_RECIPIENTS", "ops@example.com, finance@example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "https://ledger.example.com", cfg.Ledger.BaseURL)
	assert.Equal(t, 90, cfg.Matcher.MatchThreshold)
	assert.True(t, cfg.Writer.DryRun)
	assert.Equal(t, []string{"ops@example.com", "finance@example.com"}, cfg.Email.Recipients)
}

func TestLoad_PlatformPortFallback(t *testing.T) {
	t.Setenv("PORT", "3000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Port)
}

func TestLoad_ExplicitPortBeatsPlatformPort(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("PAYRECON_SERVER_PORT", ":9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestDBConfig_DSN(t *testing.T) {
	db := config.DBConfig{Path: "data/payrecon.db"}
	dsn := db.DSN()
	assert.Contains(t, dsn, "file:data/payrecon.db")
	assert.Contains(t, dsn, "journal_mode(WAL)")
	assert.Contains(t, dsn, "foreign_keys(1)")
}
