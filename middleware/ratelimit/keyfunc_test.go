package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"jump/middleware/ratelimit/domain"
)

func TestDefaultClientFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultClientFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	got := fn(r)
	if got.Key != "key:client-123" || !got.Identified {
		t.Fatalf("expected identified header key, got %+v", got)
	}
}

func TestDefaultClientFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultClientFunc("X-Client", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	got := fn(r)
	if got.Key != "ip:1.2.3.4" || got.Identified {
		t.Fatalf("expected anonymous first XFF ip, got %+v", got)
	}
}

func TestDefaultClientFunc_IgnoresXFFWhenNotTrusted(t *testing.T) {
	fn := DefaultClientFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got.Key != "ip:10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got.Key)
	}
}

func TestIdentify_StoresClientInContext(t *testing.T) {
	var seen domain.Client
	var ok bool
	h := Identify(DefaultClientFunc("X-Api-Key", false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = ClientFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Api-Key", "abc")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !ok || seen.Key != "key:abc" {
		t.Fatalf("expected client in context, got %+v ok=%v", seen, ok)
	}
}
