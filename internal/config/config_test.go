package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("GROUPGATE_AUTH_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "groupgate", cfg.Auth.Issuer)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("GROUPGATE_AUTH_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth secret is required")
}

func TestLoadLayersYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groupgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7000"
  shutdown_timeout: 3s
  allowed_origins: ["https://a.example"]
database:
  dsn: postgres://from-file
  auto_migrate: false
auth:
  secret: file-secret
  token_ttl: 10m
rate_limit:
  burst: 5
log_level: debug
`), 0o600))

	t.Setenv("GROUPGATE_PG_DSN", "postgres://from-env")
	t.Setenv("GROUPGATE_RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("GROUPGATE_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "postgres://from-env", cfg.Database.DSN)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	assert.Equal(t, 10*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 2.5, cfg.RateLimit.PerSecond)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("GROUPGATE_AUTH_SECRET", "s3cret")

	t.Run("duration", func(t *testing.T) {
		t.Setenv("GROUPGATE_TOKEN_TTL", "forever")
		_, err := Load("")
		assert.ErrorContains(t, err, "GROUPGATE_TOKEN_TTL")
	})
	t.Run("bool", func(t *testing.T) {
		t.Setenv("GROUPGATE_AUTO_MIGRATE", "sometimes")
		_, err := Load("")
		assert.ErrorContains(t, err, "GROUPGATE_AUTO_MIGRATE")
	})
	t.Run("same ports", func(t *testing.T) {
		t.Setenv("GROUPGATE_GRPC_ADDR", ":8080")
		_, err := Load("")
		assert.ErrorContains(t, err, "must differ")
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("GROUPGATE_LOG_LEVEL", "chatty")
		_, err := Load("")
		assert.ErrorContains(t, err, "unknown log level")
	})
	t.Run("trusted proxy", func(t *testing.T) {
		t.Setenv("GROUPGATE_TRUSTED_PROXIES", "10.0.0.0/8, not-an-ip")
		_, err := Load("")
		assert.ErrorContains(t, err, `trusted proxy "not-an-ip"`)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config")
	})
}

func TestTrustedProxyPrefixes(t *testing.T) {
	h := HTTPConfig{TrustedProxies: []string{"10.1.2.3/8", "192.168.0.7", "::ffff:172.16.0.1", "fd00::/64"}}
	got, err := h.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.0.7/32"),
		netip.MustParsePrefix("172.16.0.1/32"),
		netip.MustParsePrefix("fd00::/64"),
	}, got)

	empty, err := HTTPConfig{}.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Empty(t, empty)
}
