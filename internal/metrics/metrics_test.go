package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://SteamCommunity.com/id/foo/", "steamcommunity.com"},
		{"no scheme", "steamcommunity.com/id/foo", "steamcommunity.com"},
		{"host with port", "localhost:8080", "localhost"},
		{"ip address", "127.0.0.1", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if probeAttemptsTotal == nil || probeDurationSeconds == nil ||
		httpRequestsTotal == nil || rateLimitDelaysSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(probeAttemptsTotal.WithLabelValues("transient"))
	ObserveProbeAttempt("transient")
	if val := testutil.ToFloat64(probeAttemptsTotal.WithLabelValues("transient")); val != before+1 {
		t.Errorf("expected transient attempts to grow by 1, got %f -> %f", before, val)
	}

	IncProbesInFlight()
	IncProbesInFlight()
	DecProbesInFlight()
	if val := testutil.ToFloat64(probesInFlight); val < 1 {
		t.Errorf("expected in-flight gauge >= 1, got %f", val)
	}
	DecProbesInFlight()

	ObserveProbe("available", 150*time.Millisecond)
	ObserveRateLimitDelay("steamcommunity.com", 2*time.Second)
	if val := testutil.CollectAndCount(rateLimitDelaysSeconds); val <= 0 {
		t.Errorf("expected rate limit histogram to be observed, got %d", val)
	}
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"https://steamcommunity.com/id/x/", "http://localhost", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
