package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jump/backend"
	"jump/config"
	"jump/middleware/ratelimit"
	rlapp "jump/middleware/ratelimit/application"
	rldomain "jump/middleware/ratelimit/domain"
	rlinfra "jump/middleware/ratelimit/infra"
	"jump/observability"
	"jump/server"
	"jump/share/application"
	"jump/share/domain"
	"jump/share/infra"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().String("backend", "", "backend driver: redis or memory")
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("backend.driver", cmd.Flags().Lookup("backend"))
	return cmd
}

// openBackend abre o backend configurado. rdb é nil para o driver memory.
func openBackend(ctx context.Context, cfg *config.Config) (backend.Store, redis.UniversalClient, func(), error) {
	if cfg.Backend.Driver == "memory" {
		mem := backend.NewMemory()
		mem.StartJanitor(ctx, time.Minute)
		return mem, nil, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return backend.NewRedis(rdb), rdb, func() { _ = rdb.Close() }, nil
}

func classLimits(c config.ClassLimits) rlapp.Limits {
	return rlapp.Limits{
		rldomain.ClassCreate: c.Create,
		rldomain.ClassRead:   c.Read,
		rldomain.ClassDelete: c.Delete,
	}
}

// buildServer monta todo o grafo de dependências a partir da configuração.
func buildServer(ctx context.Context, cfg *config.Config, store backend.Store, rdb redis.UniversalClient, logger *zap.Logger) (*server.Server, error) {
	store = backend.WithTimeout(store, cfg.Backend.OpTimeout)

	var (
		metrics     *observability.Metrics
		decisionObs rldomain.DecisionObserver
		storeOpts   []infra.StoreOption
		statsStore  rldomain.StatsStore
		limiter     application.Admitter
		shield      rldomain.BurstLimiter
		pool        rldomain.SlotPool
	)

	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		decisionObs = metrics
		storeOpts = append(storeOpts, infra.WithObserver(metrics))
	}

	if cfg.Stats.Enabled {
		if rdb != nil {
			statsStore = rlinfra.NewRedisStatsStore(rdb,
				rlinfra.WithStatsPrefix(cfg.Stats.Prefix),
				rlinfra.WithStatsTTL(cfg.Stats.TTL),
				rlinfra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
			)
		} else {
			statsStore = rlinfra.NewMemoryStatsStore(rlinfra.WithTrackKeys(cfg.Stats.TrackKeys))
		}
	}

	if cfg.RateLimit.Enabled {
		policy, err := rldomain.ParseFailurePolicy(cfg.RateLimit.FailurePolicy)
		if err != nil {
			return nil, err
		}
		limiter = rlapp.Limiter{
			Counters:        store,
			Stats:           statsStore,
			Observer:        decisionObs,
			Window:          cfg.RateLimit.Window,
			Limits:          classLimits(cfg.RateLimit.Limits),
			AnonymousLimits: classLimits(cfg.RateLimit.AnonymousLimits),
			Policy:          policy,
			Logger:          logger.Named("ratelimit"),
		}
	}

	if cfg.Shield.Enabled {
		b := rlinfra.NewBurstBuckets(cfg.Shield.RPS, cfg.Shield.Burst, rlinfra.WithIdleTTL(cfg.Shield.IdleTTL))
		b.StartJanitor(ctx)
		shield = b
	}

	if cfg.Server.MaxConcurrent > 0 {
		p := rlinfra.NewChanPool(cfg.Server.MaxConcurrent)
		if metrics != nil {
			metrics.RegisterInFlight(func() float64 { return float64(p.InUse()) })
		}
		pool = p
	}

	storeOpts = append(storeOpts,
		infra.WithMaxContentBytes(cfg.Entries.MaxContentBytes),
		infra.WithContentTypes(cfg.Entries.ContentTypes),
		infra.WithLogger(logger.Named("store")),
	)

	gov := application.Governor{
		Limiter: limiter,
		Store:   infra.NewExpiringStore(store, storeOpts...),
		IDs:     infra.UUIDGenerator{},
		Clock:   infra.SystemClock{},
		Policy: application.Policy{
			DefaultTTL:      cfg.Entries.DefaultTTL,
			MaxTTL:          cfg.Entries.MaxTTL,
			MaxContentBytes: cfg.Entries.MaxContentBytes,
			ContentTypes:    domain.NewContentTypes(cfg.Entries.ContentTypes),
			IDAttempts:      cfg.Entries.IDAttempts,
		},
		Logger: logger.Named("governor"),
	}

	health := server.NewHealthManager(version)
	health.RegisterChecker("backend", server.BackendChecker{Store: store})

	return server.New(server.Options{
		Addr:               cfg.Server.Addr,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		Governor:           gov,
		ClientFn:           ratelimit.DefaultClientFunc(cfg.RateLimit.KeyHeader, cfg.RateLimit.TrustXFF),
		Shield:             shield,
		ShieldHeaders:      cfg.Shield.Headers,
		Pool:               pool,
		ConcurrencyTimeout: cfg.Server.ConcurrencyTimeout,
		CORS:               cfg.Server.CORSEnabled,
		MaxContentBytes:    cfg.Entries.MaxContentBytes,
		Health:             health,
		Metrics:            metrics,
		Logger:             logger.Named("http"),
	}), nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, rdb, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	srv, err := buildServer(ctx, cfg, store, rdb, logger)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("jump configured",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Backend.Driver),
		zap.Duration("op_timeout", cfg.Backend.OpTimeout),
	)
	logger.Info("rate limit",
		zap.Bool("enabled", cfg.RateLimit.Enabled),
		zap.Duration("window", cfg.RateLimit.Window),
		zap.String("failure_policy", cfg.RateLimit.FailurePolicy),
		zap.String("key_header", cfg.RateLimit.KeyHeader),
		zap.Bool("trust_xff", cfg.RateLimit.TrustXFF),
		zap.Any("limits", cfg.RateLimit.Limits),
		zap.Any("anonymous_limits", cfg.RateLimit.AnonymousLimits),
	)
	logger.Info("shield and concurrency",
		zap.Bool("shield", cfg.Shield.Enabled),
		zap.Float64("shield_rps", cfg.Shield.RPS),
		zap.Int("shield_burst", cfg.Shield.Burst),
		zap.Int("max_concurrent", cfg.Server.MaxConcurrent),
		zap.Duration("concurrency_timeout", cfg.Server.ConcurrencyTimeout),
	)

	return srv.Start()
}
