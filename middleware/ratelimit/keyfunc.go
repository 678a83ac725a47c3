package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"jump/middleware/ratelimit/domain"
)

// ClientFunc extrai a identidade do cliente da requisição.
type ClientFunc func(r *http.Request) domain.Client

// DefaultClientFunc usa o header keyHeader (cliente identificado) e, na falta
// dele, o primeiro IP do X-Forwarded-For (se confiável) ou o host do RemoteAddr
// (cliente anônimo).
func DefaultClientFunc(keyHeader string, trustXFF bool) ClientFunc {
	return func(r *http.Request) domain.Client {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return domain.Client{Key: domain.Key("key:" + v), Identified: true}
			}
		}
		return domain.Client{Key: domain.Key("ip:" + remoteIP(r, trustXFF))}
	}
}

func remoteIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

type clientCtxKey struct{}

// WithClient guarda o cliente no contexto.
func WithClient(ctx context.Context, c domain.Client) context.Context {
	return context.WithValue(ctx, clientCtxKey{}, c)
}

// ClientFrom lê o cliente guardado por Identify. ok=false se não houver.
func ClientFrom(ctx context.Context) (domain.Client, bool) {
	c, ok := ctx.Value(clientCtxKey{}).(domain.Client)
	return c, ok
}

// Identify resolve o cliente uma vez por requisição e o coloca no contexto.
func Identify(fn ClientFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ClientFrom(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithClient(r.Context(), fn(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientOf devolve o cliente do contexto ou o resolve na hora.
func clientOf(r *http.Request, fn ClientFunc) domain.Client {
	if c, ok := ClientFrom(r.Context()); ok {
		return c
	}
	return fn(r)
}
