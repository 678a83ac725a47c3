package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jump/middleware/ratelimit/infra"
)

// holdHandler ocupa a vaga até hold ser fechado.
func holdHandler(entered chan<- struct{}, hold <-chan struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-hold
		w.WriteHeader(http.StatusCreated)
	})
}

func TestConcurrencyMiddleware_RejectsWhenPoolIsFull(t *testing.T) {
	pool := infra.NewChanPool(1)
	entered := make(chan struct{}, 1)
	hold := make(chan struct{})

	var rejected int
	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Pool:           pool,
		AcquireTimeout: 20 * time.Millisecond,
		Reject: func(w http.ResponseWriter, r *http.Request, status int) {
			rejected = status
			w.WriteHeader(status)
		},
	})(holdHandler(entered, hold))

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/payloads", nil))
		first <- w.Code
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatalf("first request never reached the handler")
	}
	if got := pool.InUse(); got != 1 {
		t.Fatalf("expected 1 slot in use, got %d", got)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/payloads", nil))
	if w.Code != http.StatusServiceUnavailable || rejected != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 via Reject, got code=%d rejected=%d", w.Code, rejected)
	}

	close(hold)
	if code := <-first; code != http.StatusCreated {
		t.Fatalf("expected first request 201, got %d", code)
	}
	if got := pool.InUse(); got != 0 {
		t.Fatalf("expected slot released, got %d in use", got)
	}
}

func TestConcurrencyMiddleware_CanceledClientGetsNoResponse(t *testing.T) {
	pool := infra.NewChanPool(1)
	release, ok := pool.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected to take the only slot")
	}
	defer release()

	called := false
	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Pool:           pool,
		AcquireTimeout: time.Second,
		Reject: func(w http.ResponseWriter, r *http.Request, status int) {
			called = true
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run without a slot")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/payloads/x", nil).WithContext(ctx))

	if called {
		t.Fatalf("expected no rejection for a client that already left")
	}
}

func TestConcurrencyMiddleware_DisabledWhenNoMax(t *testing.T) {
	h := ConcurrencyMiddleware(ConcurrencyOptions{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/payloads/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough, got %d", w.Code)
	}
}
