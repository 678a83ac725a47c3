package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	rldomain "jump/middleware/ratelimit/domain"
	"jump/share/domain"

	"go.uber.org/zap"
)

// Admitter é o limiter visto pelo governor.
type Admitter interface {
	Admit(ctx context.Context, client rldomain.Client, class rldomain.OperationClass) (rldomain.Decision, error)
}

// Policy reúne os limites aplicados às entradas.
type Policy struct {
	DefaultTTL      time.Duration
	MaxTTL          time.Duration
	MaxContentBytes int
	ContentTypes    domain.ContentTypes
	// IDAttempts é o número de ids tentados antes de ErrGenerationExhausted.
	IDAttempts int
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:      24 * time.Hour,
		MaxTTL:          30 * 24 * time.Hour,
		MaxContentBytes: 10 << 20,
		ContentTypes:    domain.NewContentTypes(domain.DefaultContentTypes),
		IDAttempts:      3,
	}
}

// Governor compõe limiter, gerador de ids e armazenamento para cada operação.
// Não guarda estado próprio.
type Governor struct {
	Limiter Admitter
	Store   domain.EntryStore
	IDs     domain.IDGenerator
	Clock   domain.Clock
	Policy  Policy
	Logger  *zap.Logger
}

type CreateRequest struct {
	Content     []byte
	ContentType string
	// ExpiresAt nil => agora + DefaultTTL.
	ExpiresAt *time.Time
}

type Created struct {
	Entry    *domain.Entry
	Decision rldomain.Decision
}

type Read struct {
	// Entry é nil quando a entrada não existe (ou expirou).
	Entry    *domain.Entry
	Decision rldomain.Decision
}

type Deleted struct {
	Removed  bool
	Decision rldomain.Decision
}

// admit devolve *RateLimitedError na negação e repassa erros do limiter.
func (g Governor) admit(ctx context.Context, client rldomain.Client, class rldomain.OperationClass) (rldomain.Decision, error) {
	if g.Limiter == nil {
		return rldomain.Decision{Allowed: true}, nil
	}
	dec, err := g.Limiter.Admit(ctx, client, class)
	if err != nil {
		return dec, err
	}
	if !dec.Allowed {
		return dec, &domain.RateLimitedError{Class: class, Decision: dec}
	}
	return dec, nil
}

func (g Governor) CreateEntry(ctx context.Context, req CreateRequest, client rldomain.Client) (Created, error) {
	dec, err := g.admit(ctx, client, rldomain.ClassCreate)
	if err != nil {
		return Created{Decision: dec}, err
	}

	p := g.policy()
	if err := domain.ValidateContent(req.Content, req.ContentType, p.MaxContentBytes, p.ContentTypes); err != nil {
		return Created{Decision: dec}, err
	}

	now := g.now()
	expiresAt := now.Add(p.DefaultTTL)
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
		if !expiresAt.After(now) {
			return Created{Decision: dec}, &domain.ValidationError{Field: "expires_at", Reason: "must be in the future"}
		}
		if p.MaxTTL > 0 && expiresAt.After(now.Add(p.MaxTTL)) {
			return Created{Decision: dec}, &domain.ValidationError{Field: "expires_at", Reason: "exceeds maximum expiry"}
		}
	}

	for attempt := 1; attempt <= p.IDAttempts; attempt++ {
		id, err := g.IDs.Generate()
		if err != nil {
			return Created{Decision: dec}, err
		}

		e := &domain.Entry{
			ID:          id,
			Content:     req.Content,
			ContentType: domain.NormalizeContentType(req.ContentType),
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   expiresAt,
		}
		err = g.Store.Put(ctx, e)
		if err == nil {
			return Created{Entry: e, Decision: dec}, nil
		}
		if !errors.Is(err, domain.ErrCollision) {
			return Created{Decision: dec}, err
		}
		g.logger().Debug("entry id collision, regenerating", zap.Int("attempt", attempt))
	}

	g.logger().Error("entry id generation exhausted", zap.Int("attempts", p.IDAttempts))
	return Created{Decision: dec}, fmt.Errorf("%w after %d attempts", domain.ErrGenerationExhausted, p.IDAttempts)
}

func (g Governor) ReadEntry(ctx context.Context, id string, client rldomain.Client) (Read, error) {
	dec, err := g.admit(ctx, client, rldomain.ClassRead)
	if err != nil {
		return Read{Decision: dec}, err
	}
	e, err := g.Store.Get(ctx, id)
	if err != nil {
		return Read{Decision: dec}, err
	}
	return Read{Entry: e, Decision: dec}, nil
}

func (g Governor) DeleteEntry(ctx context.Context, id string, client rldomain.Client) (Deleted, error) {
	dec, err := g.admit(ctx, client, rldomain.ClassDelete)
	if err != nil {
		return Deleted{Decision: dec}, err
	}
	removed, err := g.Store.Delete(ctx, id)
	if err != nil {
		return Deleted{Decision: dec}, err
	}
	return Deleted{Removed: removed, Decision: dec}, nil
}

func (g Governor) policy() Policy {
	p := g.Policy
	if p.IDAttempts <= 0 {
		p.IDAttempts = 3
	}
	if p.DefaultTTL <= 0 {
		p.DefaultTTL = 24 * time.Hour
	}
	return p
}

func (g Governor) now() time.Time {
	if g.Clock != nil {
		return g.Clock.Now()
	}
	return time.Now().UTC()
}

func (g Governor) logger() *zap.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.NewNop()
}
