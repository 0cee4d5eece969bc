package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

func TestSliceSource(t *testing.T) {
	t.Parallel()

	src := FromSlice([]string{"alpha", "bravo"})
	require.Equal(t, 2, src.Len())
	got, err := Collect(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "bravo"}, got)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestSliceSourceCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromSlice([]string{"alpha"}).Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadWordlist(t *testing.T) {
	t.Parallel()

	input := "GamerTag\n\n   \n  rareusername  \nab\nbad name\nsteamfan\r\n"
	w, err := ReadWordlist(strings.NewReader(input), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)
	require.Equal(t, 3, w.Len())
	require.Equal(t, 2, w.Dropped())

	got, err := Collect(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, []string{"gamertag", "rareusername", "steamfan"}, got)
}

func TestReadWordlistWithByteOrderMark(t *testing.T) {
	t.Parallel()

	w, err := ReadWordlist(strings.NewReader("\uFEFFgamer123\r\nsteamfan\r\n"), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)
	require.Zero(t, w.Dropped())

	got, err := Collect(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, []string{"gamer123", "steamfan"}, got)
}

func TestReadWordlistEmpty(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "\n\n  \n", "a\nb\n"} {
		_, err := ReadWordlist(strings.NewReader(input), vanity.MustNormalizer("", true), nil)
		require.ErrorIs(t, err, vanity.ErrSourceEmpty, "input %q", input)
	}
}

func TestOpenWordlist(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Custom.txt")
	require.NoError(t, os.WriteFile(path, []byte("gamer123\nsteamfan\n"), 0o600))

	w, err := OpenWordlist(path, vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)
	require.Equal(t, 2, w.Len())

	_, err = OpenWordlist(filepath.Join(t.TempDir(), "missing.txt"), vanity.MustNormalizer("", true), nil)
	require.Error(t, err)
}

func TestParseWords(t *testing.T) {
	t.Parallel()

	words, err := ParseWords([]byte(`["alpha", "bravo", " "]`))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "bravo"}, words)

	words, err = ParseWords([]byte("alpha\nbravo, charlie\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "bravo", "charlie"}, words)

	words, err = ParseWords([]byte("  "))
	require.NoError(t, err)
	require.Empty(t, words)

	_, err = ParseWords([]byte(`{"error":"rate limited"}`))
	require.Error(t, err)

	_, err = ParseWords([]byte(`["alpha", 7]`))
	require.Error(t, err)

	_, err = ParseWords([]byte(`["unterminated`))
	require.Error(t, err)
}

func TestRemoteBatches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Query().Get("number") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch n {
		case 1:
			_, _ = w.Write([]byte(`["Alpha","xy"]`))
		default:
			_, _ = w.Write([]byte(`["charlie"]`))
		}
	}))
	t.Cleanup(srv.Close)

	src, err := NewRemote(RemoteConfig{URL: srv.URL, BatchSize: 2}, srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	got, err := Collect(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "charlie"}, got)
	require.EqualValues(t, 2, calls.Load())
}

func TestRemoteMaxWords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := r.URL.Query().Get("number")
		if n == "3" {
			_, _ = w.Write([]byte(`["one_1","two_2","three"]`))
			return
		}
		_, _ = w.Write([]byte(`["four_4"]`))
	}))
	t.Cleanup(srv.Close)

	src, err := NewRemote(RemoteConfig{URL: srv.URL, BatchSize: 3, MaxWords: 4}, srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	got, err := Collect(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, []string{"one_1", "two_2", "three", "four_4"}, got)
}

func TestRemoteUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	src, err := NewRemote(RemoteConfig{URL: srv.URL}, srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, vanity.ErrSourceUnavailable)
}

func TestRemoteMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"words": 3}`))
	}))
	t.Cleanup(srv.Close)

	src, err := NewRemote(RemoteConfig{URL: srv.URL}, srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.True(t, errors.Is(err, vanity.ErrSourceUnavailable))
}

func TestRemoteEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	src, err := NewRemote(RemoteConfig{URL: srv.URL}, srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, vanity.ErrSourceEmpty)
}

func TestNewRemoteValidates(t *testing.T) {
	t.Parallel()

	_, err := NewRemote(RemoteConfig{}, nil, vanity.MustNormalizer("", true), nil)
	require.Error(t, err)
	_, err = NewRemote(RemoteConfig{}, http.DefaultClient, nil, nil)
	require.Error(t, err)
}

func TestRemoteStopsAfterStaleBatches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`["gamer123","steamfan","oldtimer","rareuser","player01"]`))
	}))
	t.Cleanup(srv.Close)

	src, err := NewRemote(RemoteConfig{URL: srv.URL, BatchSize: 5, MaxStaleBatches: 2},
		srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	got, err := Collect(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, got, 15, "every batch is still handed to the filter")
	require.EqualValues(t, 3, calls.Load(), "one fresh batch then two stale ones")
}

func TestRemoteCountsSeenWordsAsStale(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`["gamer123","steamfan"]`))
	}))
	t.Cleanup(srv.Close)

	seen := func(string) bool { return true }
	src, err := NewRemote(RemoteConfig{URL: srv.URL, BatchSize: 2, Seen: seen},
		srv.Client(), vanity.MustNormalizer("", true), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = Collect(ctx, src)
	require.NoError(t, err)
	require.EqualValues(t, defaultMaxStaleBatches, calls.Load())
}
