// Package ratelimit implements fixed-window admission control keyed by
// user+IP. Buckets live for the process lifetime only; losing them on
// restart is acceptable.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// LocalClientMarker is used as the client address when no forwarded-for
// header is present.
const LocalClientMarker = "local"

// Config controls the fixed window.
type Config struct {
	Window  time.Duration
	Ceiling int
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed bool
	// RetryAfter is the time until the window resets; only meaningful on
	// denial. Never exceeds Window.
	RetryAfter time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a process-wide fixed-window counter map. Safe for concurrent
// use.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	ceiling int
	buckets map[string]*bucket

	cleanupInterval time.Duration
	lastCleanup     time.Time

	now func() time.Time
}

// New creates a limiter with the given window and ceiling.
func New(cfg Config) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = 45
	}
	return &Limiter{
		window:          window,
		ceiling:         ceiling,
		buckets:         make(map[string]*bucket),
		cleanupInterval: 2 * window,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

// Check admits or rejects one request for key. The first request for a key,
// or the first after window expiry, resets the counter to 1.
func (l *Limiter) Check(key string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.cleanupInterval {
		for k, b := range l.buckets {
			if b.resetAt.Before(now) {
				delete(l.buckets, k)
			}
		}
		l.lastCleanup = now
	}

	b, ok := l.buckets[key]
	if !ok || b.resetAt.Before(now) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return Result{Allowed: true}
	}
	if b.count >= l.ceiling {
		retry := b.resetAt.Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Result{Allowed: false, RetryAfter: retry}
	}
	b.count++
	return Result{Allowed: true}
}

// BucketKey derives the admission key from the verified user id and an
// approximation of the client IP. The forwarded-for header is used as a
// heuristic only, which is why the user id is part of the key.
func BucketKey(userID string, r *http.Request) string {
	return userID + ":" + clientIP(r)
}

func clientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return LocalClientMarker
	}
	first, _, _ := strings.Cut(forwarded, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return LocalClientMarker
	}
	return first
}
