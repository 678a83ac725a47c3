package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rldomain "jump/middleware/ratelimit/domain"
)

// Metrics reúne as métricas do serviço num registry próprio.
type Metrics struct {
	registry *prometheus.Registry

	RateLimitDecisions *prometheus.CounterVec
	StoreOperations    *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jump",
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Rate limit decisions by operation class and outcome",
			},
			[]string{"class", "outcome"},
		),

		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jump",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Entry store operations by result",
			},
			[]string{"op", "result"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jump",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "jump",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RateLimitDecisions,
		m.StoreOperations,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler expõe o registry no formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterInFlight publica uma gauge lida na hora da coleta (ex: vagas em uso).
func (m *Metrics) RegisterInFlight(fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "jump",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently holding a concurrency slot",
		},
		fn,
	))
}

// ObserveDecision implementa domain.DecisionObserver do rate limit.
func (m *Metrics) ObserveDecision(class rldomain.OperationClass, outcome string) {
	m.RateLimitDecisions.WithLabelValues(string(class), outcome).Inc()
}

// ObserveStoreOp implementa infra.StoreObserver.
func (m *Metrics) ObserveStoreOp(op, result string) {
	m.StoreOperations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
