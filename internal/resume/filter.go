// Package resume reconstructs the set of already-checked candidates from the
// full log so interrupted runs continue without duplicate checks.
package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/sink"
	"github.com/JakeFAU/steam-vanity-checker/internal/source"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Filter tracks candidates that must not be checked again.
type Filter struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	prior   int
	corrupt int
	skipped int
}

// New returns an empty filter. It still deduplicates within a run.
func New() *Filter {
	return &Filter{seen: make(map[string]struct{})}
}

// Load builds a filter from the full log at path. A missing or empty file
// yields an empty filter. Corrupt lines are logged and skipped. Error rows
// count as checked.
func Load(path string, norm *vanity.Normalizer, logger *zap.Logger) (*Filter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := New()
	file, err := os.Open(path) //nolint:gosec // operator supplied path
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open resume log: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only

	if err := f.replay(file, norm, logger); err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	if f.corrupt > 0 {
		logger.Warn("resume log had corrupt lines", zap.String("path", path), zap.Int("corrupt", f.corrupt))
	}
	logger.Info("resume filter loaded", zap.String("path", path), zap.Int("checked", f.prior))
	return f, nil
}

func (f *Filter) replay(r io.Reader, norm *vanity.Normalizer, logger *zap.Logger) error {
	return eachLine(r, func(line int, text string, tooLong bool) {
		if text == "" && !tooLong {
			return
		}
		rec, err := decode(text, tooLong, norm)
		if errors.Is(err, sink.ErrHeaderLine) {
			return
		}
		if err != nil {
			f.corrupt++
			logger.Warn("skipping corrupt resume line", zap.Int("line", line), zap.Error(err))
			return
		}
		if _, dup := f.seen[rec.Candidate]; !dup {
			f.seen[rec.Candidate] = struct{}{}
			f.prior++
		}
	})
}

// decode parses one full-log line and normalizes its candidate the way the
// current run would.
func decode(text string, tooLong bool, norm *vanity.Normalizer) (vanity.CheckRecord, error) {
	if tooLong {
		return vanity.CheckRecord{}, fmt.Errorf("line longer than %d bytes", maxLineBytes)
	}
	rec, err := sink.DecodeLine(text)
	if err != nil {
		return rec, err
	}
	if norm != nil {
		if rec.Candidate, err = norm.Normalize(rec.Candidate); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// MarkIfNew records c and reports whether it had not been seen before.
func (f *Filter) MarkIfNew(c string) bool {
	if c == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[c]; ok {
		f.skipped++
		return false
	}
	f.seen[c] = struct{}{}
	return true
}

// Seen reports whether c is already checked or admitted.
func (f *Filter) Seen(c string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[c]
	return ok
}

// Prior is the number of distinct candidates found in the log at load time.
func (f *Filter) Prior() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prior
}

// Corrupt is the number of log lines skipped at load time.
func (f *Filter) Corrupt() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.corrupt
}

// Skipped is the number of candidates filtered out since load.
func (f *Filter) Skipped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}

// Wrap returns a Source that silently drops candidates the filter has seen.
func (f *Filter) Wrap(src source.Source) source.Source {
	return &filtered{src: src, filter: f}
}

type filtered struct {
	src    source.Source
	filter *Filter
}

func (w *filtered) Next(ctx context.Context) (string, error) {
	for {
		c, err := w.src.Next(ctx)
		if err != nil {
			return "", err
		}
		if w.filter.MarkIfNew(c) {
			return c, nil
		}
	}
}
