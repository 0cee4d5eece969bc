// Package scheduler fans candidates out to concurrent probes and funnels the
// finished records through a single collector goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/steam-vanity-checker/internal/source"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Prober checks one candidate. An error means the probe was cancelled and
// produced no record.
type Prober interface {
	Probe(ctx context.Context, candidate string) (vanity.CheckRecord, error)
}

// Handler receives each completed record on the collector goroutine. An error
// is treated as a sink failure and stops the run.
type Handler func(rec vanity.CheckRecord) error

// Config bounds a run.
type Config struct {
	// Concurrency is the maximum number of probes in flight.
	Concurrency int
	// GracePeriod is how long in-flight probes may keep running after the
	// parent context is cancelled.
	GracePeriod time.Duration
	// MaxChecks caps admitted candidates. 0 means unlimited.
	MaxChecks int
}

// Result counts what happened to admitted candidates.
type Result struct {
	Admitted  int
	Completed int
	// Dropped probes were cancelled or finished after a sink failure.
	Dropped int
}

// Scheduler drives probes under a concurrency bound.
type Scheduler struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Scheduler. Concurrency below 1 is raised to 1.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, logger: logger.Named("scheduler")}
}

// Run pulls candidates from src until it is exhausted, fails, the cap is hit
// or ctx is cancelled. In-flight probes are always drained before Run
// returns. The returned error is, in order of precedence, a sink failure
// wrapped in vanity.ErrSinkWrite, the source error, or ctx.Err().
func (s *Scheduler) Run(ctx context.Context, src source.Source, p Prober, handle Handler) (Result, error) {
	var res Result

	admitCtx, stopAdmit := context.WithCancel(ctx)
	defer stopAdmit()
	probeCtx, cancelProbes := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProbes()

	done := make(chan struct{})
	defer close(done)
	go s.enforceGrace(ctx, done, cancelProbes)

	results := make(chan vanity.CheckRecord, s.cfg.Concurrency)
	var (
		dropped   atomic.Int64
		completed int
		sinkErr   error
	)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for rec := range results {
			if sinkErr != nil {
				dropped.Add(1)
				continue
			}
			if err := handle(rec); err != nil {
				sinkErr = err
				dropped.Add(1)
				stopAdmit()
				s.logger.Error("result handler failed, draining", zap.Error(err))
				continue
			}
			completed++
		}
	}()

	sem := semaphore.NewWeighted(int64(s.cfg.Concurrency))
	var g errgroup.Group
	var srcErr error
	for s.cfg.MaxChecks <= 0 || res.Admitted < s.cfg.MaxChecks {
		if err := sem.Acquire(admitCtx, 1); err != nil {
			break
		}
		candidate, err := src.Next(admitCtx)
		if err != nil {
			sem.Release(1)
			if !errors.Is(err, io.EOF) && admitCtx.Err() == nil {
				srcErr = err
				s.logger.Warn("candidate source failed, draining", zap.Error(err))
			}
			break
		}
		res.Admitted++
		g.Go(func() error {
			defer sem.Release(1)
			rec, err := p.Probe(probeCtx, candidate)
			if err != nil {
				dropped.Add(1)
				s.logger.Debug("probe dropped", zap.String("candidate", candidate), zap.Error(err))
				return nil
			}
			results <- rec
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	<-collected

	res.Completed = completed
	res.Dropped = int(dropped.Load())
	s.logger.Debug("scheduler drained",
		zap.Int("admitted", res.Admitted),
		zap.Int("completed", res.Completed),
		zap.Int("dropped", res.Dropped),
	)

	switch {
	case sinkErr != nil:
		if errors.Is(sinkErr, vanity.ErrSinkWrite) {
			return res, sinkErr
		}
		return res, fmt.Errorf("%w: %w", vanity.ErrSinkWrite, sinkErr)
	case srcErr != nil:
		return res, srcErr
	default:
		return res, ctx.Err()
	}
}

// enforceGrace cancels in-flight probes once the grace period after a parent
// cancellation has elapsed.
func (s *Scheduler) enforceGrace(ctx context.Context, done <-chan struct{}, cancelProbes context.CancelFunc) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	s.logger.Info("interrupted, waiting for in-flight probes", zap.Duration("grace_period", s.cfg.GracePeriod))
	timer := time.NewTimer(s.cfg.GracePeriod)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("grace period elapsed, cancelling in-flight probes")
		cancelProbes()
	}
}
