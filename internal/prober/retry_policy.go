package prober

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// RetryConfig configures ExponentialRetryPolicy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter adds up to this fraction of the delay at random. 0 disables it.
	Jitter float64
}

// DefaultRetryConfig mirrors the production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   600 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// ExponentialRetryPolicy doubles the delay after each failed attempt up to a cap.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      float64
}

// NewExponentialRetryPolicy builds a policy, filling zero values from DefaultRetryConfig.
func NewExponentialRetryPolicy(cfg RetryConfig) *ExponentialRetryPolicy {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &ExponentialRetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		jitter:      cfg.Jitter,
	}
}

// MaxAttempts is the total number of attempts, including the first.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// MaxDelay is the backoff cap.
func (p *ExponentialRetryPolicy) MaxDelay() time.Duration {
	return p.maxDelay
}

// ShouldRetry reports whether another attempt may follow the given 1-based attempt.
func (p *ExponentialRetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.maxAttempts
}

// Backoff returns the wait after the given 1-based failed attempt:
// min(base * 2^(attempt-1), max), plus optional jitter.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	d := time.Duration(delay)
	if p.jitter > 0 {
		d += randomJitter(time.Duration(delay * p.jitter))
	}
	return d
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
