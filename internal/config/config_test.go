package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "5177", cfg.Port)
	assert.Equal(t, ":5177", cfg.Addr())
	assert.Equal(t, int32(20), cfg.DB.MaxConns)
	assert.Equal(t, DefaultAllowedOrigins, cfg.AllowedOrigins)
	assert.Equal(t, 100, cfg.RateLimit.GeneralMax)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.GeneralWindow)
	assert.Equal(t, 5, cfg.RateLimit.RegisterMax)
	assert.Equal(t, time.Hour, cfg.RateLimit.RegisterWindow)
	assert.Equal(t, 3*time.Second, cfg.BotMinFillTime)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.AutoMigrate)
	assert.Empty(t, cfg.AdminToken)
	assert.Equal(t, "none", cfg.TracingExporter)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("ADMIN_AUTH_TOKEN", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RATE_LIMIT_REGISTER_MAX", "2")
	t.Setenv("RATE_LIMIT_REGISTER_WINDOW", "30m")
	t.Setenv("BOT_MIN_FILL_TIME", "1500ms")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Port)
	assert.Equal(t, "s3cret", cfg.AdminToken)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2, cfg.RateLimit.RegisterMax)
	assert.Equal(t, 30*time.Minute, cfg.RateLimit.RegisterWindow)
	assert.Equal(t, 1500*time.Millisecond, cfg.BotMinFillTime)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "party.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
allowed_origins:
  - https://one.example
  - https://two.example
rate_limit_general_max: 50
`), 0o600))

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://one.example", "https://two.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 50, cfg.RateLimit.GeneralMax)
}

func TestReadFile_Missing(t *testing.T) {
	assert.NoError(t, ReadFile(New(), ""))
	assert.Error(t, ReadFile(New(), filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Setenv("RATE_LIMIT_GENERAL_MAX", "0")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("TRACING_EXPORTER", "jaeger")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,proxy.local")

	_, err := Load(New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "general rate limit")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
	assert.Contains(t, err.Error(), "TRACING_EXPORTER")
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestPostgresURL(t *testing.T) {
	cfg := Config{DB: DBConfig{
		Host: "db", Port: "5432", User: "party", Password: "p@ss", Name: "signup", SSLMode: "require",
	}}
	assert.Equal(t, "postgres://party:p%40ss@db:5432/signup?sslmode=require", cfg.PostgresURL())

	cfg.DatabaseURL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", cfg.PostgresURL())
}
