package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	rldomain "jump/middleware/ratelimit/domain"
)

const EnvPrefix = "JUMP"

// SetDefaults registra todos os valores padrão. Toda chave precisa de um
// default para que JUMP_* seja enxergada por AllSettings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_concurrent", 100)
	v.SetDefault("server.concurrency_timeout", "5s")
	v.SetDefault("server.cors_enabled", true)

	v.SetDefault("backend.driver", "redis")
	v.SetDefault("backend.op_timeout", "2s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("entries.default_ttl", "24h")
	v.SetDefault("entries.max_ttl", "720h")
	v.SetDefault("entries.max_content_bytes", 10<<20)
	v.SetDefault("entries.content_types", []string{
		"text/plain", "text/html", "application/json",
		"image/jpeg", "image/png", "image/gif",
	})
	v.SetDefault("entries.id_attempts", 3)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.failure_policy", "closed")
	v.SetDefault("ratelimit.key_header", "")
	v.SetDefault("ratelimit.trust_xff", false)
	v.SetDefault("ratelimit.limits.create", 60)
	v.SetDefault("ratelimit.limits.read", 600)
	v.SetDefault("ratelimit.limits.delete", 60)
	v.SetDefault("ratelimit.anonymous_limits.create", 10)
	v.SetDefault("ratelimit.anonymous_limits.read", 120)
	v.SetDefault("ratelimit.anonymous_limits.delete", 10)

	v.SetDefault("shield.enabled", false)
	v.SetDefault("shield.rps", 10.0)
	v.SetDefault("shield.burst", 0)
	v.SetDefault("shield.idle_ttl", "15m")
	v.SetDefault("shield.headers", false)

	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.prefix", "ratelimit:stats")
	v.SetDefault("stats.ttl", "24h")
	v.SetDefault("stats.track_keys", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
}

// BindEnv liga JUMP_SECAO_CHAVE a secao.chave.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodifica a configuração efetiva de v e valida.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Com RPS muito baixo (ex: 0.02) um burst alto dá a impressão de que o
	// escudo não funciona, porque as primeiras requisições passam.
	if cfg.Shield.Burst == 0 {
		cfg.Shield.Burst = 20
		if cfg.Shield.RPS > 0 && cfg.Shield.RPS < 1 {
			cfg.Shield.Burst = 1
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejeita combinações sem sentido.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend.Driver {
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr is required when backend.driver=redis"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("backend.driver must be redis or memory, got %q", c.Backend.Driver))
	}
	if c.Backend.OpTimeout < 0 {
		errs = append(errs, errors.New("backend.op_timeout must be >= 0"))
	}

	if c.Entries.DefaultTTL <= 0 {
		errs = append(errs, errors.New("entries.default_ttl must be > 0"))
	}
	if c.Entries.MaxTTL > 0 && c.Entries.MaxTTL < c.Entries.DefaultTTL {
		errs = append(errs, errors.New("entries.max_ttl must be >= entries.default_ttl"))
	}
	if c.Entries.MaxContentBytes <= 0 {
		errs = append(errs, errors.New("entries.max_content_bytes must be > 0"))
	}
	if len(c.Entries.ContentTypes) == 0 {
		errs = append(errs, errors.New("entries.content_types must not be empty"))
	}
	if c.Entries.IDAttempts <= 0 {
		errs = append(errs, errors.New("entries.id_attempts must be > 0"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Window < time.Second {
			errs = append(errs, errors.New("ratelimit.window must be >= 1s"))
		}
		if _, err := rldomain.ParseFailurePolicy(c.RateLimit.FailurePolicy); err != nil {
			errs = append(errs, fmt.Errorf("ratelimit.failure_policy: %w", err))
		}
	}

	if c.Shield.Enabled && c.Shield.RPS <= 0 {
		errs = append(errs, errors.New("shield.rps must be > 0"))
	}
	if c.Server.MaxConcurrent < 0 {
		errs = append(errs, errors.New("server.max_concurrent must be >= 0"))
	}

	return errors.Join(errs...)
}
