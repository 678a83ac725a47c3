package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"jump/middleware/ratelimit"
	rldomain "jump/middleware/ratelimit/domain"
	"jump/observability"
)

// Options reúne as dependências do servidor. Campos nil desligam o recurso
// correspondente (métricas, escudo, limite de concorrência).
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Governor Governor
	ClientFn ratelimit.ClientFunc

	Shield             rldomain.BurstLimiter
	ShieldHeaders      bool
	Pool               rldomain.SlotPool
	ConcurrencyTimeout time.Duration
	CORS               bool

	// MaxContentBytes limita o conteúdo; o corpo JSON ganha uma folga para o envelope.
	MaxContentBytes int

	Health  *HealthManager
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// bodySlack cobre escapes JSON e os demais campos do corpo.
const bodySlack = 64 << 10

type Server struct {
	router       *chi.Mux
	server       *http.Server
	governor     Governor
	clientFn     ratelimit.ClientFunc
	maxBodyBytes int64
	logger       *zap.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clientFn := opts.ClientFn
	if clientFn == nil {
		clientFn = ratelimit.DefaultClientFunc("", false)
	}
	maxContent := opts.MaxContentBytes
	if maxContent <= 0 {
		maxContent = 10 << 20
	}
	// JSON pode até dobrar o tamanho do conteúdo com escapes
	maxBody := int64(maxContent)*2 + bodySlack

	s := &Server{
		router:       chi.NewRouter(),
		governor:     opts.Governor,
		clientFn:     clientFn,
		maxBodyBytes: maxBody,
		logger:       logger,
	}
	s.routes(opts)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

func (s *Server) routes(opts Options) {
	r := s.router

	// RequestID → Recovery → Logging/Metrics → CORS
	r.Use(RequestID)
	r.Use(Recovery(s.logger))
	r.Use(RequestLogging(s.logger, opts.Metrics))
	if opts.CORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{
				RequestIDHeader, "Retry-After", "Location",
				"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
				"X-Shield-RPS", "X-Shield-Burst",
			},
			MaxAge: 3600,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, CodeNotFound, "the requested resource was not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed for this resource", nil)
	})

	if opts.Health != nil {
		r.Get("/health", opts.Health.HealthHandler)
		r.Get("/health/live", opts.Health.LivenessHandler)
		r.Get("/health/ready", opts.Health.ReadinessHandler)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	reject := func(w http.ResponseWriter, req *http.Request, status int) {
		code, msg := CodeRateLimited, "too many requests"
		if status == http.StatusServiceUnavailable {
			code, msg = CodeServiceUnavailable, "server busy"
		}
		writeError(w, req, status, code, msg, nil)
	}

	var shieldObs rldomain.DecisionObserver
	if opts.Metrics != nil {
		shieldObs = opts.Metrics
	}

	r.Route("/v1/payloads", func(r chi.Router) {
		r.Use(ratelimit.Identify(s.clientFn))
		r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Pool:           opts.Pool,
			AcquireTimeout: opts.ConcurrencyTimeout,
			Reject:         reject,
		}))
		r.Use(ratelimit.Shield(ratelimit.ShieldOptions{
			Buckets:  opts.Shield,
			Observer: shieldObs,
			Headers:  opts.ShieldHeaders,
			Reject:   reject,
		}))

		r.Post("/", s.createPayload)
		r.Get("/{id}", s.getPayload)
		r.Delete("/{id}", s.deletePayload)
	})
}

// Start bloqueia até o servidor parar. Shutdown normal não é erro.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve é como Start, mas num listener já aberto (útil em testes).
func (s *Server) Serve(l net.Listener) error {
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler expõe o router para testes.
func (s *Server) Handler() http.Handler {
	return s.router
}
