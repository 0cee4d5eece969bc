package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/httpx"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// DefaultRandomURL is the public random word service.
const DefaultRandomURL = "https://random-word-api.herokuapp.com/word"

const maxPayloadBytes = 4 << 20

// RemoteConfig configures a Remote source.
type RemoteConfig struct {
	URL       string
	BatchSize int
	// MaxWords caps the raw words requested over the whole run. 0 means unlimited.
	MaxWords  int
	UserAgent string
	// MaxStaleBatches ends the stream after this many consecutive batches
	// without a fresh candidate. Defaults to 3.
	MaxStaleBatches int
	// Seen reports candidates checked earlier, typically the resume filter.
	// Words already offered by this source are never fresh either.
	Seen func(candidate string) bool
}

const defaultMaxStaleBatches = 3

// Remote pulls candidates in batches from a random word service.
type Remote struct {
	cfg     RemoteConfig
	client  httpx.Doer
	norm    *vanity.Normalizer
	logger  *zap.Logger
	buf     []string
	offered map[string]struct{}
	fetched int
	emitted int
	stale   int
	done    bool
}

// NewRemote builds a Remote source.
func NewRemote(cfg RemoteConfig, client httpx.Doer, norm *vanity.Normalizer, logger *zap.Logger) (*Remote, error) {
	if client == nil {
		return nil, fmt.Errorf("remote source: nil http client")
	}
	if norm == nil {
		return nil, fmt.Errorf("remote source: nil normalizer")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultRandomURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("remote source: parse url: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxStaleBatches <= 0 {
		cfg.MaxStaleBatches = defaultMaxStaleBatches
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		cfg:     cfg,
		client:  client,
		norm:    norm,
		logger:  logger.Named("remote_source"),
		offered: make(map[string]struct{}),
	}, nil
}

// Next implements Source. Fetch failures are wrapped in vanity.ErrSourceUnavailable.
func (r *Remote) Next(ctx context.Context) (string, error) {
	for len(r.buf) == 0 {
		if r.done {
			if r.emitted == 0 {
				return "", vanity.ErrSourceEmpty
			}
			return "", io.EOF
		}
		if err := r.fill(ctx); err != nil {
			return "", err
		}
	}
	c := r.buf[0]
	r.buf = r.buf[1:]
	r.emitted++
	return c, nil
}

func (r *Remote) fill(ctx context.Context) error {
	count := r.cfg.BatchSize
	if r.cfg.MaxWords > 0 {
		remaining := r.cfg.MaxWords - r.fetched
		if remaining <= 0 {
			r.done = true
			return nil
		}
		count = min(count, remaining)
	}
	words, err := r.FetchBatch(ctx, count)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("remote source: %w", ctxErr)
		}
		return fmt.Errorf("%w: %w", vanity.ErrSourceUnavailable, err)
	}
	r.fetched += len(words)
	if len(words) < count {
		r.done = true
	}
	dropped, fresh := 0, 0
	for _, w := range words {
		c, err := r.norm.Normalize(w)
		if err != nil {
			dropped++
			continue
		}
		if r.isFresh(c) {
			fresh++
		}
		r.offered[c] = struct{}{}
		r.buf = append(r.buf, c)
	}
	if fresh == 0 {
		r.stale++
	} else {
		r.stale = 0
	}
	if r.stale >= r.cfg.MaxStaleBatches {
		r.logger.Info("word service stopped yielding new candidates", zap.Int("stale_batches", r.stale))
		r.done = true
	}
	r.logger.Debug("fetched word batch",
		zap.Int("requested", count),
		zap.Int("received", len(words)),
		zap.Int("dropped", dropped),
		zap.Int("fresh", fresh),
	)
	return nil
}

func (r *Remote) isFresh(c string) bool {
	if _, ok := r.offered[c]; ok {
		return false
	}
	return r.cfg.Seen == nil || !r.cfg.Seen(c)
}

// FetchBatch requests count raw words from the service.
func (r *Remote) FetchBatch(ctx context.Context, count int) ([]string, error) {
	u, err := url.Parse(r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("number", strconv.Itoa(count))
	u.RawQuery = q.Encode()

	req, err := httpx.NewRequest(ctx, http.MethodGet, u.String(), nil, r.cfg.UserAgent)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch words: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch words: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	return ParseWords(body)
}

// ParseWords accepts a JSON array of strings, or newline or comma separated text.
func ParseWords(body []byte) ([]string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, nil
	}
	if gjson.Valid(text) {
		res := gjson.Parse(text)
		if !res.IsArray() {
			return nil, fmt.Errorf("malformed word payload: expected array, got %s", res.Type)
		}
		var words []string
		for _, item := range res.Array() {
			if item.Type != gjson.String {
				return nil, fmt.Errorf("malformed word payload: non-string element %s", item.Raw)
			}
			if w := strings.TrimSpace(item.String()); w != "" {
				words = append(words, w)
			}
		}
		return words, nil
	}
	if strings.ContainsAny(text, "[]{}\"") {
		return nil, fmt.Errorf("malformed word payload")
	}
	var words []string
	for _, line := range strings.Split(text, "\n") {
		for _, part := range strings.Split(line, ",") {
			if w := strings.TrimSpace(part); w != "" {
				words = append(words, w)
			}
		}
	}
	return words, nil
}
