package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"jump/backend"
)

// HealthChecker é qualquer dependência que sabe se está saudável.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// BackendChecker verifica o backend com um PING.
type BackendChecker struct {
	Store backend.Store
}

func (c BackendChecker) CheckHealth(ctx context.Context) error {
	return c.Store.Ping(ctx)
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthManager agrega os checks e expõe /health, /health/live e /health/ready.
type HealthManager struct {
	names    []string
	checkers map[string]HealthChecker
	version  string
	timeout  time.Duration
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
		timeout:  5 * time.Second,
	}
}

// RegisterChecker não é seguro para uso concorrente; registre antes de servir.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	if _, ok := hm.checkers[name]; !ok {
		hm.names = append(hm.names, name)
		sort.Strings(hm.names)
	}
	hm.checkers[name] = checker
}

func (hm *HealthManager) run(ctx context.Context) (string, map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	checks := make(map[string]string, len(hm.names))
	status := "healthy"
	for _, name := range hm.names {
		if ctx.Err() != nil {
			checks[name] = "timeout"
			status = "unhealthy"
			continue
		}
		if err := hm.checkers[name].CheckHealth(ctx); err != nil {
			checks[name] = "unhealthy"
			status = "unhealthy"
			continue
		}
		checks[name] = "healthy"
	}
	return status, checks
}

func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks := hm.run(r.Context())
	if status != "healthy" {
		writeError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "aggregate health check failed",
			map[string]any{"status": status, "checks": checks})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler só indica que o processo responde; não consulta dependências.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "alive", Timestamp: time.Now().UTC()})
}

func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status, checks := hm.run(r.Context())
	if status != "healthy" {
		writeError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "readiness probe failed",
			map[string]any{"status": status, "checks": checks})
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "ready", Timestamp: time.Now().UTC()})
}
