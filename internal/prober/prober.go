package prober

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/clock/system"
	"github.com/JakeFAU/steam-vanity-checker/internal/httpx"
	"github.com/JakeFAU/steam-vanity-checker/internal/metrics"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// DefaultURLTemplate is the Steam custom URL lookup. {} is replaced by the candidate.
const DefaultURLTemplate = "https://steamcommunity.com/id/{}/"

const defaultMaxBodyBytes = 2 << 20

// Clock supplies check timestamps.
type Clock interface {
	Now() time.Time
}

// Limiter paces outbound requests.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// holder is implemented by limiters that share a Retry-After cool-down
// across workers.
type holder interface {
	Hold(rawURL string, d time.Duration)
}

// Config configures a Prober.
type Config struct {
	URLTemplate  string
	UserAgent    string
	MaxBodyBytes int64
}

// Prober checks one candidate per Probe call. It is safe for concurrent use.
type Prober struct {
	cfg        Config
	client     httpx.Doer
	retry      *ExponentialRetryPolicy
	pauser     Pauser
	limiter    Limiter
	clock      Clock
	classifier Classifier
	logger     *zap.Logger
}

// Option customizes a Prober.
type Option func(*Prober)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p *ExponentialRetryPolicy) Option {
	return func(pr *Prober) {
		if p != nil {
			pr.retry = p
		}
	}
}

// WithPauser overrides how backoff waits are performed.
func WithPauser(p Pauser) Option {
	return func(pr *Prober) {
		if p != nil {
			pr.pauser = p
		}
	}
}

// WithLimiter adds request pacing before every attempt.
func WithLimiter(l Limiter) Option {
	return func(pr *Prober) {
		pr.limiter = l
	}
}

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(pr *Prober) {
		if c != nil {
			pr.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(pr *Prober) {
		if l != nil {
			pr.logger = l
		}
	}
}

// New builds a Prober.
func New(cfg Config, client httpx.Doer, opts ...Option) (*Prober, error) {
	if client == nil {
		return nil, errors.New("prober: nil http client")
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if !strings.Contains(cfg.URLTemplate, "{}") {
		return nil, fmt.Errorf("prober: url template %q has no {} placeholder", cfg.URLTemplate)
	}
	if _, err := url.Parse(strings.Replace(cfg.URLTemplate, "{}", "x", 1)); err != nil {
		return nil, fmt.Errorf("prober: parse url template: %w", err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	p := &Prober{
		cfg:    cfg,
		client: client,
		retry:  NewExponentialRetryPolicy(DefaultRetryConfig()),
		pauser: TimerPauser{},
		clock:  system.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("prober")
	return p, nil
}

// URLFor renders the lookup URL for a candidate.
func (p *Prober) URLFor(candidate string) string {
	return strings.Replace(p.cfg.URLTemplate, "{}", url.PathEscape(candidate), 1)
}

type outcome int

const (
	outcomeVerdict outcome = iota
	outcomeTransient
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeVerdict:
		return "verdict"
	case outcomeTransient:
		return "transient"
	default:
		return "error"
	}
}

type attemptResult struct {
	kind       outcome
	status     vanity.Status
	code       int
	note       string
	retryAfter time.Duration
}

// Probe checks candidate and always yields a record unless ctx ends before a
// verdict, in which case the returned error wraps the context error and the
// candidate must not be recorded.
func (p *Prober) Probe(ctx context.Context, candidate string) (vanity.CheckRecord, error) {
	metrics.IncProbesInFlight()
	defer metrics.DecProbesInFlight()
	start := time.Now()
	target := p.URLFor(candidate)

	for attempt := 1; ; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx, target); err != nil {
				return vanity.CheckRecord{}, fmt.Errorf("probe %s: %w", candidate, err)
			}
		}
		res := p.attempt(ctx, target)
		metrics.ObserveProbeAttempt(res.kind.String())

		switch res.kind {
		case outcomeVerdict:
			return p.finish(candidate, res.status, res.code, res.note, attempt, start), nil
		case outcomeFatal:
			return p.finish(candidate, vanity.StatusError, res.code, res.note, attempt, start), nil
		}

		if err := ctx.Err(); err != nil {
			return vanity.CheckRecord{}, fmt.Errorf("probe %s: %w", candidate, err)
		}
		if !p.retry.ShouldRetry(attempt) {
			note := NoteRetriesExhausted + ": " + res.note
			return p.finish(candidate, vanity.StatusError, res.code, note, attempt, start), nil
		}
		delay := p.retry.Backoff(attempt)
		if res.retryAfter > delay {
			delay = min(res.retryAfter, p.retry.MaxDelay())
		}
		if h, ok := p.limiter.(holder); ok && res.retryAfter > 0 {
			h.Hold(target, delay)
		}
		p.logger.Debug("transient probe failure",
			zap.String("candidate", candidate),
			zap.Int("attempt", attempt),
			zap.Int("http_status", res.code),
			zap.String("note", res.note),
			zap.Duration("backoff", delay),
		)
		if err := p.pauser.Pause(ctx, delay); err != nil {
			return vanity.CheckRecord{}, fmt.Errorf("probe %s: %w", candidate, err)
		}
	}
}

func (p *Prober) finish(candidate string, status vanity.Status, code int, note string, attempts int, start time.Time) vanity.CheckRecord {
	metrics.ObserveProbe(string(status), time.Since(start))
	return vanity.CheckRecord{
		Candidate:  candidate,
		Status:     status,
		HTTPStatus: code,
		Note:       note,
		Attempts:   attempts,
		CheckedAt:  p.clock.Now().UTC(),
	}
}

func (p *Prober) attempt(ctx context.Context, target string) attemptResult {
	req, err := httpx.NewRequest(ctx, http.MethodGet, target, nil, p.cfg.UserAgent)
	if err != nil {
		return attemptResult{kind: outcomeFatal, note: err.Error()}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := p.client.Do(req)
	if err != nil {
		return attemptResult{kind: outcomeTransient, note: "network: " + networkNote(err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
		_ = resp.Body.Close()
	}()

	code := resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil && strings.Contains(resp.Request.URL.Path, "/profiles/") {
		return attemptResult{kind: outcomeVerdict, status: vanity.StatusTaken, code: code, note: NoteRedirectToProfiles}
	}
	switch {
	case code == http.StatusNotFound:
		return attemptResult{kind: outcomeVerdict, status: vanity.StatusAvailable, code: code, note: NoteNotFoundStatus}
	case code == http.StatusTooManyRequests || code >= 500:
		return attemptResult{
			kind:       outcomeTransient,
			code:       code,
			note:       fmt.Sprintf("status %d", code),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), p.clock.Now()),
		}
	case code >= 400:
		return attemptResult{kind: outcomeFatal, code: code, note: fmt.Sprintf("%s %d", NoteUnexpectedStatus, code)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
	if err != nil {
		return attemptResult{kind: outcomeTransient, code: code, note: "read body: " + networkNote(err)}
	}
	status, note := p.classifier.Classify(body)
	return attemptResult{kind: outcomeVerdict, status: status, code: code, note: note}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func networkNote(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}
