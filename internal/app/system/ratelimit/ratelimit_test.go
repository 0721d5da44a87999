package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nestforge/missionhub/internal/app/system/identity"
)

func TestAllow_WithinLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("user1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("user1") {
		t.Error("fourth request should be blocked")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Allow("a") {
		t.Fatal("first key should be allowed")
	}
	if !l.Allow("b") {
		t.Error("second key should have its own window")
	}
}

func TestRemaining(t *testing.T) {
	l := New(5, time.Minute)
	if got := l.Remaining("k"); got != 5 {
		t.Errorf("fresh key: want 5 remaining, got %d", got)
	}
	l.Allow("k")
	l.Allow("k")
	if got := l.Remaining("k"); got != 3 {
		t.Errorf("after 2 requests: want 3 remaining, got %d", got)
	}
}

func TestCallerKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set(identity.Header, "abc123")
	if got := CallerKey(r); got != "u:abc123" {
		t.Errorf("want user key, got %q", got)
	}

	r = httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := CallerKey(r); got != "ip:203.0.113.9" {
		t.Errorf("want forwarded ip key, got %q", got)
	}
}

func TestMiddleware_BlocksOverLimit(t *testing.T) {
	mw := Middleware(New(1, time.Minute))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/groups/x/progress", nil)
	req.Header.Set(identity.Header, "caller")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first write: want 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second write: want 429, got %d", rec.Code)
	}

	// Reads never count against the window.
	get := httptest.NewRequest("GET", "/api/groups/x", nil)
	get.Header.Set(identity.Header, "caller")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	if rec.Code != http.StatusOK {
		t.Errorf("read: want 200, got %d", rec.Code)
	}
}
