package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"jump/share/domain"
)

// Códigos estáveis do envelope de erro.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// ErrorEnvelope é o formato de toda resposta de erro.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorEnvelope{Error: ErrorBody{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: GetRequestID(r.Context()),
	}})
}

// classify traduz um erro do core em status HTTP + envelope.
func classify(err error) (int, string, string, map[string]any) {
	var (
		ve       *domain.ValidationError
		rl       *domain.RateLimitedError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, CodeValidationFailed, ve.Error(), map[string]any{"field": ve.Field}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large", map[string]any{"limit_bytes": tooLarge.Limit}
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", map[string]any{
			"class":       string(rl.Class),
			"retry_after": rl.Decision.RetryAfterSeconds(),
		}
	case errors.Is(err, domain.ErrLimiterUnavailable):
		return http.StatusServiceUnavailable, CodeServiceUnavailable, "rate limiter unavailable", nil
	case errors.Is(err, domain.ErrBackendTimeout):
		return http.StatusServiceUnavailable, CodeTimeout, "backend timed out", nil
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, CodeServiceUnavailable, "backend unavailable", nil
	case errors.Is(err, domain.ErrGenerationExhausted):
		return http.StatusInternalServerError, CodeInternal, "could not allocate an id", nil
	}
	return http.StatusInternalServerError, CodeInternal, "internal error", nil
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg, details := classify(err)

	fields := []zap.Field{
		zap.String("error_code", code),
		zap.Int("http_status", status),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}

	writeError(w, r, status, code, msg, details)
}
