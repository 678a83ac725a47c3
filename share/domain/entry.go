package domain

import (
	"mime"
	"strings"
	"time"
)

// Entry é uma unidade de conteúdo compartilhado, endereçada por um id opaco.
//
// É serializada em JSON como valor da chave entry:{id} no backend.
type Entry struct {
	ID             string     `json:"id"`
	Content        []byte     `json:"content"`
	ContentType    string     `json:"content_type"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// EntryKey é a chave da entrada no backend.
func EntryKey(id string) string { return "entry:" + id }

// Expired: a entrada deixa de existir exatamente em ExpiresAt.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// DefaultContentTypes é a allow-list padrão.
var DefaultContentTypes = []string{
	"text/plain",
	"text/html",
	"application/json",
	"image/jpeg",
	"image/png",
	"image/gif",
}

// ContentTypes é um conjunto de media types aceitos (sem parâmetros).
type ContentTypes map[string]struct{}

func NewContentTypes(types []string) ContentTypes {
	out := make(ContentTypes, len(types))
	for _, t := range types {
		if n := NormalizeContentType(t); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func (c ContentTypes) Allowed(contentType string) bool {
	_, ok := c[NormalizeContentType(contentType)]
	return ok
}

// NormalizeContentType descarta parâmetros ("; charset=...") e caixa.
func NormalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(ct)
}

// ValidateContent confere conteúdo não vazio, tamanho e tipo.
func ValidateContent(content []byte, contentType string, maxBytes int, allowed ContentTypes) error {
	if len(content) == 0 {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if maxBytes > 0 && len(content) > maxBytes {
		return &ValidationError{Field: "content", Reason: "exceeds maximum size"}
	}
	if strings.TrimSpace(contentType) == "" {
		return &ValidationError{Field: "content_type", Reason: "is required"}
	}
	if allowed != nil && !allowed.Allowed(contentType) {
		return &ValidationError{Field: "content_type", Reason: "is not allowed"}
	}
	return nil
}

const maxIDLength = 128

// ValidateID rejeita ids vazios ou absurdamente longos antes de ir ao backend.
func ValidateID(id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if len(id) > maxIDLength {
		return &ValidationError{Field: "id", Reason: "is too long"}
	}
	return nil
}
