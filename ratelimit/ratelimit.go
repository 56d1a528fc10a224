// Package ratelimit throttles sensitive endpoints with a fixed-window
// counter keyed by client IP. Counters live in Redis when configured,
// falling back to process memory otherwise.
package ratelimit

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kimtee92/PropMan/utils"
)

// Store counts hits per key within a window. Incr returns the count
// after this hit; the first hit of a window starts its expiry.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
}

func NewLimiter(store Store, limit int64, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Middleware rejects requests over the limit with 429. A store failure
// lets the request through rather than blocking the whole endpoint.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := l.store.Incr(r.Context(), "rl:"+ClientIP(r), l.window)
		if err != nil {
			log.Printf("Rate limit store error: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		if count > l.limit {
			utils.RespondWithError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP prefers the leftmost forwarded address when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Redis-backed store.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Memory is the in-process fallback store.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

func NewMemory() *Memory {
	return &Memory{windows: make(map[string]*windowEntry), now: time.Now}
}

func (m *Memory) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.windows[key]
	if !ok || now.After(e.resetAt) {
		e = &windowEntry{resetAt: now.Add(window)}
		m.windows[key] = e
	}
	e.count++
	return e.count, nil
}
