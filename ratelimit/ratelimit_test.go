package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryWindowResets(t *testing.T) {
	mem := NewMemory()
	now := time.Now()
	mem.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		n, err := mem.Incr(context.Background(), "k", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != i {
			t.Fatalf("count = %d, want %d", n, i)
		}
	}

	// Same window, separate key counts independently.
	if n, _ := mem.Incr(context.Background(), "other", time.Minute); n != 1 {
		t.Fatalf("other key count = %d, want 1", n)
	}

	// Past the window the counter starts over.
	now = now.Add(61 * time.Second)
	if n, _ := mem.Incr(context.Background(), "k", time.Minute); n != 1 {
		t.Fatalf("count after window = %d, want 1", n)
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	limiter := NewLimiter(NewMemory(), 2, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/register", nil)
		r.RemoteAddr = "10.0.0.1:4000"
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/register", nil)
	r.RemoteAddr = "10.0.0.1:4000"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", w.Code)
	}

	// A different client is unaffected.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/register", nil)
	r.RemoteAddr = "10.0.0.2:4000"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", w.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:9000"
	if got := ClientIP(r); got != "127.0.0.1" {
		t.Fatalf("ClientIP = %q, want 127.0.0.1", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want first forwarded address", got)
	}
}
