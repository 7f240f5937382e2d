package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "5")
	t.Setenv("SESSION_STORE", "Redis")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{RateLimit: RateLimitConfig{Enabled: true}}
	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "RATE_LIMIT_REQUESTS")

	cfg = &Config{
		JWT:      JWTConfig{Secret: "s"},
		Database: DatabaseConfig{User: "u", Database: "d"},
	}
	assert.NoError(t, cfg.ValidateServer())
}

func TestValidateConsole(t *testing.T) {
	cfg := &Config{
		Backend: BackendConfig{BaseURL: "http://localhost:8080/api/"},
		Session: SessionConfig{Store: "memory"},
	}
	assert.NoError(t, cfg.ValidateConsole())

	cfg.Session.Store = "disk"
	cfg.Backend.Timeout = -time.Second
	err := cfg.ValidateConsole()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_STORE")
	assert.Contains(t, err.Error(), "BACKEND_TIMEOUT_SECONDS")
}
