package config

import (
	"time"
)

// Config é a configuração completa do processo.
//
// Camadas: defaults (SetDefaults) < arquivo YAML (--config) < variáveis JUMP_* < flags.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Entries   EntriesConfig   `mapstructure:"entries"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Shield    ShieldConfig    `mapstructure:"shield"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxConcurrent <= 0 desliga o limite de requisições em voo.
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout"`
	CORSEnabled        bool          `mapstructure:"cors_enabled"`
}

type BackendConfig struct {
	// Driver: "redis" ou "memory".
	Driver    string        `mapstructure:"driver"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type EntriesConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxTTL          time.Duration `mapstructure:"max_ttl"`
	MaxContentBytes int           `mapstructure:"max_content_bytes"`
	ContentTypes    []string      `mapstructure:"content_types"`
	IDAttempts      int           `mapstructure:"id_attempts"`
}

// ClassLimits são requisições por janela para cada classe; <= 0 => sem limite.
type ClassLimits struct {
	Create int `mapstructure:"create"`
	Read   int `mapstructure:"read"`
	Delete int `mapstructure:"delete"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	// FailurePolicy: "closed" (nega) ou "open" (admite) quando o backend cai.
	FailurePolicy string `mapstructure:"failure_policy"`
	// KeyHeader identifica o cliente (ex: X-Api-Key). Vazio => só IP.
	// Sem autenticação o valor é declarado pelo cliente: só habilite atrás de
	// um gateway que valide a chave.
	KeyHeader       string      `mapstructure:"key_header"`
	TrustXFF        bool        `mapstructure:"trust_xff"`
	Limits          ClassLimits `mapstructure:"limits"`
	AnonymousLimits ClassLimits `mapstructure:"anonymous_limits"`
}

// ShieldConfig é o token bucket local (por processo, cliente e classe) contra rajadas.
type ShieldConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
	// Headers expõe X-Shield-RPS/X-Shield-Burst nas respostas.
	Headers bool `mapstructure:"headers"`
}

type StatsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	TrackKeys bool          `mapstructure:"track_keys"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
