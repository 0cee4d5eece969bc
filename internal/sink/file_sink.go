// Package sink persists check records to the append-only full log and the
// available-names log.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Options configures a FileSink.
type Options struct {
	FullLogPath      string
	AvailableLogPath string
	// Fsync forces each appended line to stable storage before Record returns.
	Fsync bool
}

// FileSink appends records to disk. One mutex serializes all writers; each
// record is a single write per file.
type FileSink struct {
	mu      sync.Mutex
	full    *os.File
	avail   *os.File
	fsync   bool
	closed  bool
	written int
	logger  *zap.Logger
}

// Open opens or creates both logs for appending. The header row is written
// only to an empty full log, and a partial last line left by a crash is
// terminated so new rows start clean.
func Open(opts Options, logger *zap.Logger) (*FileSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FullLogPath == "" || opts.AvailableLogPath == "" {
		return nil, errors.New("sink: both log paths are required")
	}
	full, created, err := openAppend(opts.FullLogPath)
	if err != nil {
		return nil, err
	}
	if created {
		row, err := encodeRow(Header)
		if err == nil {
			_, err = full.Write(row)
		}
		if err != nil {
			_ = full.Close()
			return nil, fmt.Errorf("write header %s: %w", opts.FullLogPath, err)
		}
	}
	avail, _, err := openAppend(opts.AvailableLogPath)
	if err != nil {
		_ = full.Close()
		return nil, err
	}
	logger.Debug("result sink opened",
		zap.String("full_log", opts.FullLogPath),
		zap.String("available_log", opts.AvailableLogPath),
		zap.Bool("fsync", opts.Fsync),
	)
	return &FileSink{full: full, avail: avail, fsync: opts.Fsync, logger: logger}, nil
}

// openAppend reports created=true when the file is empty.
func openAppend(path string) (*os.File, bool, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, false, fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return f, true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, false, fmt.Errorf("read tail %s: %w", path, err)
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			_ = f.Close()
			return nil, false, fmt.Errorf("repair tail %s: %w", path, err)
		}
	}
	return f, false, nil
}

// Record durably appends rec. Errors wrap vanity.ErrSinkWrite.
func (s *FileSink) Record(rec vanity.CheckRecord) error {
	line, err := EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", vanity.ErrSinkWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: sink closed", vanity.ErrSinkWrite)
	}
	if err := s.append(s.full, line); err != nil {
		return err
	}
	if rec.Available() {
		if err := s.append(s.avail, []byte(rec.Candidate+"\n")); err != nil {
			return err
		}
	}
	s.written++
	return nil
}

func (s *FileSink) append(f *os.File, line []byte) error {
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("%w: append %s: %w", vanity.ErrSinkWrite, f.Name(), err)
	}
	if s.fsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("%w: sync %s: %w", vanity.ErrSinkWrite, f.Name(), err)
		}
	}
	return nil
}

// Written reports how many records were appended by this sink.
func (s *FileSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close syncs and closes both files. It is safe to call more than once.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, f := range []*os.File{s.full, s.avail} {
		if err := f.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", f.Name(), err))
		}
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", f.Name(), err))
		}
	}
	s.logger.Debug("result sink closed", zap.Int("written", s.written))
	return errors.Join(errs...)
}
