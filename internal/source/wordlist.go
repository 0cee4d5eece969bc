package source

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Wordlist is a static newline-delimited candidate list read once at open.
type Wordlist struct {
	*Slice
	dropped int
}

// OpenWordlist reads path and normalizes every entry. Blank lines are ignored,
// invalid names are dropped and logged. A list with no usable entries yields
// vanity.ErrSourceEmpty.
func OpenWordlist(path string, norm *vanity.Normalizer, logger *zap.Logger) (*Wordlist, error) {
	f, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	w, err := ReadWordlist(f, norm, logger)
	if err != nil {
		return nil, fmt.Errorf("wordlist %s: %w", path, err)
	}
	return w, nil
}

// ReadWordlist is OpenWordlist over an arbitrary reader.
func ReadWordlist(r io.Reader, norm *vanity.Normalizer, logger *zap.Logger) (*Wordlist, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		items   []string
		dropped int
		line    int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		raw := sc.Text()
		if isBlank(raw) {
			continue
		}
		c, err := norm.Normalize(raw)
		if err != nil {
			dropped++
			logger.Debug("dropping wordlist entry", zap.Int("line", line), zap.Error(err))
			continue
		}
		items = append(items, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan wordlist: %w", err)
	}
	if dropped > 0 {
		logger.Warn("wordlist entries dropped", zap.Int("dropped", dropped), zap.Int("kept", len(items)))
	}
	if len(items) == 0 {
		return nil, vanity.ErrSourceEmpty
	}
	return &Wordlist{Slice: FromSlice(items), dropped: dropped}, nil
}

// Dropped reports how many non-blank entries failed normalization.
func (w *Wordlist) Dropped() int {
	return w.dropped
}

func isBlank(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\r', '\n', '\v', '\f', '\uFEFF':
		default:
			return false
		}
	}
	return true
}
