// Package ratelimit provides fixed-window request admission control.
//
// Windows are keyed by an opaque string so the same limiter type serves both
// per-user admission in the orchestrator and the per-IP webhook throttle.
package ratelimit

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Default admission policy: 5 requests per 60-second window per key.
const (
	DefaultMaxRequests = 5
	DefaultWindow      = time.Minute
)

// Decision is the result of one admission check.
type Decision struct {
	Admitted bool
	// RetryAfterSeconds is how long the caller should wait before the next
	// attempt. Set only when Admitted is false; always at least 1.
	RetryAfterSeconds int
}

// window tracks admissions for one key within the current reset period.
type window struct {
	count   int
	resetAt time.Time
}

// Limiter admits at most max requests per key within a fixed window. The
// window does not slide: it resets wholesale once its deadline passes.
// Limiter is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source. Used by tests to drive the
// window deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter allowing max requests per window for each key.
// Non-positive arguments fall back to the defaults.
func NewLimiter(max int, win time.Duration, opts ...Option) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if win <= 0 {
		win = DefaultWindow
	}
	l := &Limiter{
		max:     max,
		window:  win,
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Max returns the configured per-window admission count.
func (l *Limiter) Max() int { return l.max }

// CheckAndAdmit performs the admission check for key as a single atomic step:
// it starts a fresh window if none exists or the current one has elapsed,
// rejects with the remaining wait when the window is full, and otherwise
// counts the request and admits it.
func (l *Limiter) CheckAndAdmit(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}

	if w.count >= l.max {
		retry := int(math.Ceil(w.resetAt.Sub(now).Seconds()))
		if retry < 1 {
			retry = 1
		}
		slog.Warn("rate limit exceeded", "key", key, "resetAt", w.resetAt, "retryAfterSeconds", retry)
		return Decision{Admitted: false, RetryAfterSeconds: retry}
	}

	w.count++
	return Decision{Admitted: true}
}

// Sweep deletes windows that expired at least one full window ago and returns
// how many were removed. The extra window of grace keeps the sweep from
// racing a concurrent reset of a just-expired window. Intended to run on a
// periodic schedule to bound memory to recently active keys.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cleaned := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt.Add(l.window)) {
			delete(l.windows, key)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Info("rate limit sweep completed", "cleanedRecords", cleaned, "activeRecords", len(l.windows))
	}
	return cleaned
}
