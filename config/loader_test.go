package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Backend.Driver)
	assert.Equal(t, 2*time.Second, cfg.Backend.OpTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Entries.DefaultTTL)
	assert.Equal(t, 10<<20, cfg.Entries.MaxContentBytes)
	assert.Contains(t, cfg.Entries.ContentTypes, "image/png")
	assert.Equal(t, 3, cfg.Entries.IDAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "closed", cfg.RateLimit.FailurePolicy)
	assert.Equal(t, 60, cfg.RateLimit.Limits.Create)
	assert.Equal(t, 10, cfg.RateLimit.AnonymousLimits.Create)
	assert.Equal(t, 20, cfg.Shield.Burst)
	assert.False(t, cfg.Shield.Headers)

	// sem header de identidade por padrão: todo cliente é limitado por IP
	assert.Empty(t, cfg.RateLimit.KeyHeader)
	// fila de concorrência tem prazo => 503 em vez de espera sem fim
	assert.Equal(t, 100, cfg.Server.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.Server.ConcurrencyTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JUMP_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("JUMP_RATELIMIT_LIMITS_CREATE", "5")
	t.Setenv("JUMP_RATELIMIT_FAILURE_POLICY", "open")
	t.Setenv("JUMP_ENTRIES_DEFAULT_TTL", "1h")
	t.Setenv("JUMP_ENTRIES_CONTENT_TYPES", "text/plain,application/json")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.RateLimit.Limits.Create)
	assert.Equal(t, "open", cfg.RateLimit.FailurePolicy)
	assert.Equal(t, time.Hour, cfg.Entries.DefaultTTL)
	assert.Equal(t, []string{"text/plain", "application/json"}, cfg.Entries.ContentTypes)
}

func TestLoad_YAMLFile(t *testing.T) {
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
backend:
  driver: memory
shield:
  enabled: true
  rps: 0.5
  headers: true
ratelimit:
  window: 10s
  anonymous_limits:
    read: 0
`)))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend.Driver)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 0, cfg.RateLimit.AnonymousLimits.Read)
	// rps < 1 sem burst explícito => burst 1
	assert.Equal(t, 1, cfg.Shield.Burst)
	assert.True(t, cfg.Shield.Headers)
}

func TestValidate_RejectsNonsense(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":         func(c *Config) { c.Backend.Driver = "etcd" },
		"redis addr":     func(c *Config) { c.Redis.Addr = " " },
		"default ttl":    func(c *Config) { c.Entries.DefaultTTL = 0 },
		"max below def":  func(c *Config) { c.Entries.MaxTTL = time.Hour },
		"content bytes":  func(c *Config) { c.Entries.MaxContentBytes = 0 },
		"id attempts":    func(c *Config) { c.Entries.IDAttempts = 0 },
		"window":         func(c *Config) { c.RateLimit.Window = 500 * time.Millisecond },
		"failure policy": func(c *Config) { c.RateLimit.FailurePolicy = "maybe" },
		"shield rps":     func(c *Config) { c.Shield.Enabled = true; c.Shield.RPS = 0 },
		"concurrency":    func(c *Config) { c.Server.MaxConcurrent = -1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(newViper())
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
