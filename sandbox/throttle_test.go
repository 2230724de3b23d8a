package sandbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"user-manager/usermanager/domain"
	"user-manager/usermanager/infra"
)

func TestThrottle_AllowsThenRejectsSameKey(t *testing.T) {
	store := NewKeyedLimiters(0.02, 1)
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Throttle(ThrottleOptions{
		Store:               store,
		Stats:               stats,
		RetryAfter:          1 * time.Second,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/v3/users", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Burst"); got != "1" {
		t.Fatalf("expected X-RateLimit-Burst=1, got %q", got)
	}

	// 2) segunda bloqueia (burst=1 e rps bem baixo)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/v3/users", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1, got %q", got)
	}

	var info domain.ErrorInfo
	if err := json.Unmarshal(w2.Body.Bytes(), &info); err != nil {
		t.Fatalf("expected platform error body: %v", err)
	}
	if !info.Error || info.Code != CodeRateLimited {
		t.Fatalf("unexpected error body %+v", info)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if got := stats.ByOperation()["GET /v3/users"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("expected 1 allowed and 1 denied event, got %+v", got)
	}
}

func TestThrottle_KeyByToken(t *testing.T) {
	store := NewKeyedLimiters(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Throttle(ThrottleOptions{Store: store, KeyHeader: domain.HeaderAPIToken})(next)

	// tokens diferentes no mesmo IP: cada um tem seu limiter
	for _, tok := range []string{"t1", "t2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.Header.Set(domain.HeaderAPIToken, tok)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for token %s, got %d", tok, w.Code)
		}
	}
}

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestNewServer_ThrottlesPerToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(ctx, Options{Token: "tok", RPS: 0.02, Burst: 1})

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "http://example/v3/users", nil)
		r.Header.Set(domain.HeaderAPIToken, "tok")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if strings.TrimSpace(w.Header().Get("X-Request-Id")) == "" {
		t.Fatalf("expected X-Request-Id header")
	}
}
