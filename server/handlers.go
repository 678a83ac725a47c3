package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jump/middleware/ratelimit"
	rldomain "jump/middleware/ratelimit/domain"
	"jump/share/application"
)

// Governor é o core visto pela borda HTTP.
type Governor interface {
	CreateEntry(ctx context.Context, req application.CreateRequest, client rldomain.Client) (application.Created, error)
	ReadEntry(ctx context.Context, id string, client rldomain.Client) (application.Read, error)
	DeleteEntry(ctx context.Context, id string, client rldomain.Client) (application.Deleted, error)
}

const defaultMimeType = "text/plain"

type createPayloadRequest struct {
	Content    string     `json:"content"`
	MimeType   string     `json:"mime_type"`
	ExpiryTime *time.Time `json:"expiry_time"`
}

type createPayloadResponse struct {
	HashID    string    `json:"hash_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type payloadResponse struct {
	HashID     string     `json:"hash_id"`
	Content    string     `json:"content"`
	MimeType   string     `json:"mime_type"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ViewedAt   *time.Time `json:"viewed_at"`
	ExpiryTime time.Time  `json:"expiry_time"`
}

func (s *Server) client(r *http.Request) rldomain.Client {
	if c, ok := ratelimit.ClientFrom(r.Context()); ok {
		return c
	}
	return s.clientFn(r)
}

func (s *Server) createPayload(w http.ResponseWriter, r *http.Request) {
	var req createPayloadRequest
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.handleError(w, r, err)
			return
		}
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "invalid JSON body", nil)
		return
	}
	if req.MimeType == "" {
		req.MimeType = defaultMimeType
	}

	res, err := s.governor.CreateEntry(r.Context(), application.CreateRequest{
		Content:     []byte(req.Content),
		ContentType: req.MimeType,
		ExpiresAt:   req.ExpiryTime,
	}, s.client(r))
	ratelimit.WriteDecisionHeaders(w.Header(), res.Decision)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.logger.Info("payload created",
		zap.String("id", res.Entry.ID),
		zap.Int("size", len(res.Entry.Content)),
		zap.String("mime_type", res.Entry.ContentType),
	)
	w.Header().Set("Location", "/v1/payloads/"+res.Entry.ID)
	writeJSON(w, http.StatusCreated, createPayloadResponse{
		HashID:    res.Entry.ID,
		ExpiresAt: res.Entry.ExpiresAt,
	})
}

func (s *Server) getPayload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.governor.ReadEntry(r.Context(), id, s.client(r))
	ratelimit.WriteDecisionHeaders(w.Header(), res.Decision)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if res.Entry == nil {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "payload not found", nil)
		return
	}

	e := res.Entry
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, payloadResponse{
		HashID:     e.ID,
		Content:    string(e.Content),
		MimeType:   e.ContentType,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		ViewedAt:   e.LastAccessedAt,
		ExpiryTime: e.ExpiresAt,
	})
}

func (s *Server) deletePayload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.governor.DeleteEntry(r.Context(), id, s.client(r))
	ratelimit.WriteDecisionHeaders(w.Header(), res.Decision)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if !res.Removed {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "payload not found", nil)
		return
	}

	s.logger.Info("payload deleted", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}
