// Package ratelimit paces profile lookups per host. Besides the token bucket
// it keeps a shared cool-down so one 429 with Retry-After holds every worker
// aimed at that host, not only the one that saw it.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/steam-vanity-checker/internal/metrics"
)

// Config holds rate limiter configuration. A non-positive RPS disables the
// token bucket; cool-downs still apply.
type Config struct {
	RPS   float64
	Burst int
	// Pause waits out cool-downs. Nil sleeps on a timer.
	Pause func(ctx context.Context, d time.Duration) error
}

type hostState struct {
	bucket *rate.Limiter
	until  time.Time
}

// Limiter paces requests per host.
type Limiter struct {
	mu    sync.Mutex
	hosts map[string]*hostState
	limit rate.Limit
	burst int
	now   func() time.Time
	pause func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	pause := cfg.Pause
	if pause == nil {
		pause = sleep
	}
	return &Limiter{
		hosts: make(map[string]*hostState),
		limit: limit,
		burst: burst,
		now:   time.Now,
		pause: pause,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) state(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.hosts[host]
	if !ok {
		st = &hostState{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.hosts[host] = st
	}
	return st
}

// Hold keeps the URL's host closed for d. Overlapping holds extend, never
// shorten, the cool-down.
func (l *Limiter) Hold(rawURL string, d time.Duration) {
	if d <= 0 {
		return
	}
	st := l.state(metrics.SanitizeHost(rawURL))
	until := l.now().Add(d)
	l.mu.Lock()
	if until.After(st.until) {
		st.until = until
	}
	l.mu.Unlock()
}

// Wait blocks until the host's cool-down has passed and a token is available.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := metrics.SanitizeHost(rawURL)
	st := l.state(host)
	start := l.now()

	l.mu.Lock()
	hold := st.until.Sub(start)
	l.mu.Unlock()
	if hold > 0 {
		if err := l.pause(ctx, hold); err != nil {
			return fmt.Errorf("rate limit cool-down: %w", err)
		}
	}

	if err := st.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens that were already available are not worth a sample.
	if d := l.now().Sub(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, d)
	}
	return nil
}
