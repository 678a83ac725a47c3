// Package observability constrói o logger (zap) e as métricas (Prometheus)
// do serviço. Nada aqui é global: quem precisa recebe por injeção.
package observability
