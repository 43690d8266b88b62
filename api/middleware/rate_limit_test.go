package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/pkg/auth"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

type stubRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newStubRateLimiter() *stubRateLimiter {
	return &stubRateLimiter{counts: map[string]int64{}}
}

func (s *stubRateLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if s.err != nil {
		return false, 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[scope]++
	count := s.counts[scope]
	return count <= limit, count, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	t.Parallel()

	store := newStubRateLimiter()
	policy := NewRateLimitPolicy("api", time.Minute, 2)
	handler := RateLimit(policy, store, testLogger())(okHandler())

	actor := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleApplicant}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil)
	req = req.WithContext(WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMIT_EXCEEDED") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestRateLimitScopesPerUser(t *testing.T) {
	t.Parallel()

	store := newStubRateLimiter()
	policy := NewRateLimitPolicy("api", time.Minute, 1)
	handler := RateLimit(policy, store, testLogger())(okHandler())

	for i := 0; i < 2; i++ {
		actor := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleApplicant}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("user %d throttled by another user's traffic", i)
		}
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	t.Parallel()

	store := newStubRateLimiter()
	policy := NewRateLimitPolicy("api", time.Minute, 1)
	handler := RateLimit(policy, store, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.counts["api:203.0.113.7"]; !ok {
		t.Fatalf("scopes = %v, want api:203.0.113.7", store.counts)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	t.Parallel()

	store := newStubRateLimiter()
	handler := RateLimit(NewRateLimitPolicy("api", 0, 0), store, testLogger())(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("store consulted for disabled policy: %v", store.counts)
	}
}
