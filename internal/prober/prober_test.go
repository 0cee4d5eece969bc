package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

type recordPauser struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func()
}

func (p *recordPauser) Pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.delays = append(p.delays, d)
	hook := p.hook
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (p *recordPauser) Delays() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var probeTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestProber(t *testing.T, srv *httptest.Server, pauser Pauser, opts ...Option) *Prober {
	t.Helper()
	base := []Option{WithPauser(pauser), WithClock(fixedClock{probeTime})}
	p, err := New(Config{URLTemplate: srv.URL + "/id/{}/"}, srv.Client(), append(base, opts...)...)
	require.NoError(t, err)
	return p
}

func TestProbeRecoversFromRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 4 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	pauser := &recordPauser{}
	rec, err := newTestProber(t, srv, pauser).Probe(context.Background(), "rareusername")
	require.NoError(t, err)

	require.Equal(t, vanity.StatusAvailable, rec.Status)
	require.Equal(t, http.StatusNotFound, rec.HTTPStatus)
	require.Equal(t, 5, rec.Attempts)
	require.Equal(t, probeTime, rec.CheckedAt)
	require.Equal(t, []time.Duration{
		600 * time.Millisecond,
		1200 * time.Millisecond,
		2400 * time.Millisecond,
		4800 * time.Millisecond,
	}, pauser.Delays())
}

func TestProbeExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	pauser := &recordPauser{}
	rec, err := newTestProber(t, srv, pauser).Probe(context.Background(), "steamfan")
	require.NoError(t, err)

	require.Equal(t, vanity.StatusError, rec.Status)
	require.Equal(t, http.StatusInternalServerError, rec.HTTPStatus)
	require.Equal(t, 5, rec.Attempts)
	require.True(t, strings.HasPrefix(rec.Note, NoteRetriesExhausted), rec.Note)
	require.EqualValues(t, 5, calls.Load())
	require.Len(t, pauser.Delays(), 4)
}

func TestProbeClassification(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/id/gamer123/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/profiles/76561198000000000/", http.StatusFound)
	})
	mux.HandleFunc("/profiles/76561198000000000/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>profile</body></html>"))
	})
	mux.HandleFunc("/id/rareusername/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/id/errortext/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="error_ctn"><h3>The specified profile could not be found.</h3></div></body></html>`))
	})
	mux.HandleFunc("/id/markers/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="profile_header"><div class="playerAvatar"></div></div></body></html>`))
	})
	mux.HandleFunc("/id/scripted/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><script>g_rgProfileData = {"url":"x","steamid":"7656"};</script></html>`))
	})
	mux.HandleFunc("/id/blank/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>hello</body></html>`))
	})
	mux.HandleFunc("/id/forbidden/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	pauser := &recordPauser{}
	p := newTestProber(t, srv, pauser)

	cases := []struct {
		candidate string
		status    vanity.Status
		code      int
		note      string
	}{
		{"gamer123", vanity.StatusTaken, http.StatusOK, NoteRedirectToProfiles},
		{"rareusername", vanity.StatusAvailable, http.StatusNotFound, NoteNotFoundStatus},
		{"errortext", vanity.StatusAvailable, http.StatusOK, NoteNotFoundText},
		{"markers", vanity.StatusTaken, http.StatusOK, NoteProfileMarkers},
		{"scripted", vanity.StatusTaken, http.StatusOK, NoteProfileMarkers},
		{"blank", vanity.StatusTaken, http.StatusOK, NoteFallbackTaken},
		{"forbidden", vanity.StatusError, http.StatusForbidden, "unexpected_status 403"},
	}
	for _, tc := range cases {
		rec, err := p.Probe(context.Background(), tc.candidate)
		require.NoError(t, err, tc.candidate)
		require.Equal(t, tc.candidate, rec.Candidate)
		require.Equal(t, tc.status, rec.Status, tc.candidate)
		require.Equal(t, tc.code, rec.HTTPStatus, tc.candidate)
		require.Equal(t, tc.note, rec.Note, tc.candidate)
		require.Equal(t, 1, rec.Attempts, tc.candidate)
	}
	require.Empty(t, pauser.Delays())
}

func TestProbeHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	pauser := &recordPauser{}
	rec, err := newTestProber(t, srv, pauser).Probe(context.Background(), "waiter")
	require.NoError(t, err)
	require.Equal(t, vanity.StatusAvailable, rec.Status)
	require.Equal(t, []time.Duration{3 * time.Second, 10 * time.Second}, pauser.Delays())
}

func TestProbeNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	pauser := &recordPauser{}
	p, err := New(Config{URLTemplate: srv.URL + "/id/{}/"}, http.DefaultClient,
		WithPauser(pauser),
		WithRetryPolicy(NewExponentialRetryPolicy(RetryConfig{MaxAttempts: 2})),
	)
	require.NoError(t, err)

	rec, err := p.Probe(context.Background(), "offline")
	require.NoError(t, err)
	require.Equal(t, vanity.StatusError, rec.Status)
	require.Zero(t, rec.HTTPStatus)
	require.Equal(t, 2, rec.Attempts)
	require.Contains(t, rec.Note, "network")
	require.Len(t, pauser.Delays(), 1)
}

func TestProbeCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pauser := &recordPauser{hook: cancel}

	_, err := newTestProber(t, srv, pauser).Probe(ctx, "interrupted")
	require.ErrorIs(t, err, context.Canceled)
}

type countingLimiter struct{ n atomic.Int32 }

func (l *countingLimiter) Wait(context.Context, string) error {
	l.n.Add(1)
	return nil
}

func TestProbeUsesLimiter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	lim := &countingLimiter{}
	_, err := newTestProber(t, srv, &recordPauser{}, WithLimiter(lim)).Probe(context.Background(), "paced")
	require.NoError(t, err)
	require.EqualValues(t, 1, lim.n.Load())
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
	_, err = New(Config{URLTemplate: "https://steamcommunity.com/id/"}, http.DefaultClient)
	require.Error(t, err)

	p, err := New(Config{}, http.DefaultClient)
	require.NoError(t, err)
	require.Equal(t, "https://steamcommunity.com/id/gamer123/", p.URLFor("gamer123"))
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(RetryConfig{})
	require.Equal(t, 5, p.MaxAttempts())
	want := []time.Duration{600, 1200, 2400, 4800, 9600, 10000}
	for i, w := range want {
		require.Equal(t, w*time.Millisecond, p.Backoff(i+1))
	}
	require.True(t, p.ShouldRetry(4))
	require.False(t, p.ShouldRetry(5))
}

func TestBackoffJitterBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(RetryConfig{BaseDelay: time.Second, MaxDelay: 4 * time.Second, Jitter: 0.5})
	for i := 0; i < 50; i++ {
		d := p.Backoff(2)
		require.GreaterOrEqual(t, d, 2*time.Second)
		require.Less(t, d, 3*time.Second)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := probeTime
	require.Equal(t, 5*time.Second, parseRetryAfter("5", now))
	require.Zero(t, parseRetryAfter("", now))
	require.Zero(t, parseRetryAfter("-3", now))
	require.Zero(t, parseRetryAfter("soon", now))
	date := now.Add(7 * time.Second).Format(http.TimeFormat)
	require.Equal(t, 7*time.Second, parseRetryAfter(date, now))
}

func TestTimerPauser(t *testing.T) {
	t.Parallel()

	require.NoError(t, TimerPauser{}.Pause(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, TimerPauser{}.Pause(ctx, time.Hour), context.Canceled)
}

type holdingLimiter struct {
	countingLimiter
	mu    sync.Mutex
	holds []time.Duration
}

func (l *holdingLimiter) Hold(_ string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holds = append(l.holds, d)
}

func TestRetryAfterIsSharedThroughLimiter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	lim := &holdingLimiter{}
	pauser := &recordPauser{}
	rec, err := newTestProber(t, srv, pauser, WithLimiter(lim)).Probe(context.Background(), "cooldown")
	require.NoError(t, err)
	require.Equal(t, vanity.StatusAvailable, rec.Status)
	require.Equal(t, []time.Duration{3 * time.Second}, lim.holds)
	require.Equal(t, []time.Duration{3 * time.Second}, pauser.delays)
	require.EqualValues(t, 2, lim.n.Load())
}
