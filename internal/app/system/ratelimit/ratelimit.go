// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed windows.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max requests per window
	duration time.Duration // window duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit requests per key in each duration.
// Call Stop when the limiter is no longer needed.
func New(limit int, duration time.Duration) *Limiter {
	l := newLimiter(limit, duration, time.Now)
	go l.cleanupLoop(duration * 2)
	return l
}

func newLimiter(limit int, duration time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      now,
		stopCh:   make(chan struct{}),
	}
}

// Allow reports whether a request for key fits in its current window, and
// counts it if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]
	if !exists || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests are left for key in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || l.now().After(w.expiresAt) {
		return l.limit
	}
	if remaining := l.limit - w.count; remaining > 0 {
		return remaining
	}
	return 0
}

// Stop ends the background cleanup loop. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, w := range l.windows {
		if now.After(w.expiresAt) {
			delete(l.windows, key)
		}
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LookupLimiter throttles join-code lookups. Codes are probed as the user
// types, so both the user and the client IP get a budget.
type LookupLimiter struct {
	userLimiter *Limiter
	ipLimiter   *Limiter
}

// NewLookupLimiter allows perMinute lookups per user and four times that per IP.
func NewLookupLimiter(perMinute int) *LookupLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &LookupLimiter{
		userLimiter: New(perMinute, time.Minute),
		ipLimiter:   New(perMinute*4, time.Minute),
	}
}

// Check reports whether a lookup by userID from r should proceed.
func (ll *LookupLimiter) Check(r *http.Request, userID string) bool {
	if !ll.ipLimiter.Allow(ClientIP(r)) {
		return false
	}
	return userID == "" || ll.userLimiter.Allow(userID)
}

// Remaining returns how many lookups userID has left this minute.
func (ll *LookupLimiter) Remaining(userID string) int {
	return ll.userLimiter.Remaining(userID)
}

// Stop releases both underlying limiters.
func (ll *LookupLimiter) Stop() {
	ll.userLimiter.Stop()
	ll.ipLimiter.Stop()
}
