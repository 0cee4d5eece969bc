// Package engine wires a complete availability check: candidate source,
// resume filter, prober, scheduler, result sink, progress reporting and the
// optional mirror, notification, export and status integrations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/api"
	"github.com/JakeFAU/steam-vanity-checker/internal/clock/system"
	"github.com/JakeFAU/steam-vanity-checker/internal/config"
	"github.com/JakeFAU/steam-vanity-checker/internal/httpx"
	runid "github.com/JakeFAU/steam-vanity-checker/internal/id/uuid"
	"github.com/JakeFAU/steam-vanity-checker/internal/output"
	"github.com/JakeFAU/steam-vanity-checker/internal/policy/ratelimit"
	"github.com/JakeFAU/steam-vanity-checker/internal/prober"
	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
	"github.com/JakeFAU/steam-vanity-checker/internal/progress/sinks"
	"github.com/JakeFAU/steam-vanity-checker/internal/publisher"
	"github.com/JakeFAU/steam-vanity-checker/internal/resume"
	"github.com/JakeFAU/steam-vanity-checker/internal/scheduler"
	"github.com/JakeFAU/steam-vanity-checker/internal/sink"
	"github.com/JakeFAU/steam-vanity-checker/internal/source"
	"github.com/JakeFAU/steam-vanity-checker/internal/storage"
	"github.com/JakeFAU/steam-vanity-checker/internal/store"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

const (
	hubCloseTimeout = 15 * time.Second
	exportTimeout   = 2 * time.Minute
)

// Clock supplies timestamps to the prober and reporter.
type Clock interface {
	Now() time.Time
}

// Options carries collaborators built outside the engine. Every field is
// optional.
type Options struct {
	Logger *zap.Logger
	// Stdout receives per-record and status lines. Defaults to os.Stdout.
	Stdout io.Writer
	// ProbeClient and SourceClient replace the HTTP clients built from config.
	ProbeClient  httpx.Doer
	SourceClient httpx.Doer
	// Pauser replaces the backoff timer.
	Pauser     prober.Pauser
	Clock      Clock
	Registerer prometheus.Registerer
	Repository store.CheckRepository
	Publisher  publisher.Publisher
	BlobStore  store.BlobStore
	RunID      uuid.UUID
}

// Report describes a finished run.
type Report struct {
	RunID     uuid.UUID
	Snapshot  progress.Snapshot
	Scheduler scheduler.Result
	// Skipped candidates were already in the full log or repeated in this run.
	Skipped int
	// Invalid wordlist entries failed normalization.
	Invalid      int
	PriorChecked int
	Exported     []string
}

// Run executes one check. It returns vanity.ErrSourceEmpty when there was
// nothing to check, vanity.ErrSourceUnavailable or vanity.ErrSinkWrite after
// draining on a fatal failure, and ctx.Err() when interrupted. Records
// completed before any of those are already durable.
func Run(ctx context.Context, cfg config.Config, opts Options) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	clock := opts.Clock
	if clock == nil {
		clock = system.New()
	}
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = runid.MustRunID()
	}
	logger = logger.With(zap.String("run_id", runID.String()))
	report := Report{RunID: runID}

	norm, err := vanity.NewNormalizer(cfg.Candidate.Pattern, cfg.Candidate.CaseInsensitive)
	if err != nil {
		return report, err
	}

	filter := resume.New()
	if cfg.Resume.Enabled {
		filter, err = resume.Load(cfg.Results.FullLog, norm, logger)
		if err != nil {
			return report, err
		}
		report.PriorChecked = filter.Prior()
	}

	src, total, invalid, err := openSource(ctx, cfg, opts, norm, filter, logger)
	report.Invalid = invalid
	if err != nil {
		report.Skipped = filter.Skipped()
		return report, err
	}

	fs, err := sink.Open(sink.Options{
		FullLogPath:      cfg.Results.FullLog,
		AvailableLogPath: cfg.Results.AvailableLog,
		Fsync:            cfg.Results.Fsync,
	}, logger)
	if err != nil {
		return report, err
	}

	p, err := buildProber(cfg, opts, clock, logger)
	if err != nil {
		_ = fs.Close()
		return report, err
	}

	hub := progress.NewHub(progress.HubConfig{Logger: logger}, buildSinks(opts, p, logger)...)
	reporter := progress.NewReporter(runID,
		progress.ReporterConfig{Every: cfg.Progress.Every, Verbose: cfg.Progress.Verbose},
		progress.WithPrinter(output.NewPrinter(stdout, cfg.Progress.NoColor)),
		progress.WithEmitter(hub),
		progress.WithClock(clock),
		progress.WithLogger(logger),
	)

	stopServer := startServer(ctx, cfg, opts, reporter, logger)
	defer stopServer()

	reporter.Start(total)
	handle := func(rec vanity.CheckRecord) error {
		if err := fs.Record(rec); err != nil {
			return err
		}
		reporter.Observe(rec)
		return nil
	}

	sched := scheduler.New(scheduler.Config{
		Concurrency: cfg.Scheduler.Concurrency,
		GracePeriod: cfg.Scheduler.GracePeriod,
		MaxChecks:   cfg.Scheduler.MaxChecks,
	}, logger)
	res, runErr := sched.Run(ctx, src, p, handle)
	report.Scheduler = res
	report.Skipped = filter.Skipped()

	if err := fs.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, vanity.ErrSourceEmpty) && res.Admitted > 0 {
		runErr = nil
	}

	finishErr := runErr
	if errors.Is(runErr, vanity.ErrSourceEmpty) {
		finishErr = nil
	}
	report.Snapshot = reporter.Finish(finishErr)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hubCloseTimeout)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}

	if opts.BlobStore != nil {
		report.Exported = export(ctx, cfg, opts.BlobStore, runID, logger)
	}

	return report, runErr
}

// openSource builds the filtered candidate stream and its planned total.
// Wordlists are filtered up front so the total excludes resumed names.
func openSource(
	ctx context.Context,
	cfg config.Config,
	opts Options,
	norm *vanity.Normalizer,
	filter *resume.Filter,
	logger *zap.Logger,
) (source.Source, int, int, error) {
	switch cfg.Source.Mode {
	case config.SourceRandom:
		client := opts.SourceClient
		if client == nil {
			c, err := httpx.NewClient(httpx.ClientConfig{Timeout: cfg.Source.Timeout, ProxyURL: cfg.Probe.ProxyURL})
			if err != nil {
				return nil, 0, 0, err
			}
			client = c
		}
		remote, err := source.NewRemote(source.RemoteConfig{
			URL:             cfg.Source.RandomURL,
			BatchSize:       cfg.Source.BatchSize,
			MaxWords:        cfg.Source.MaxWords,
			UserAgent:       cfg.Probe.UserAgent,
			MaxStaleBatches: cfg.Source.MaxStaleBatches,
			Seen:            filter.Seen,
		}, client, norm, logger)
		if err != nil {
			return nil, 0, 0, err
		}
		return filter.Wrap(remote), progress.UnknownTotal, 0, nil
	default:
		wl, err := source.OpenWordlist(cfg.Source.WordlistPath, norm, logger)
		if err != nil {
			return nil, 0, 0, err
		}
		items, err := source.Collect(ctx, filter.Wrap(wl))
		if err != nil {
			return nil, 0, wl.Dropped(), err
		}
		total := len(items)
		if cfg.Scheduler.MaxChecks > 0 && cfg.Scheduler.MaxChecks < total {
			total = cfg.Scheduler.MaxChecks
		}
		logger.Info("wordlist loaded",
			zap.String("path", cfg.Source.WordlistPath),
			zap.Int("entries", wl.Len()),
			zap.Int("invalid", wl.Dropped()),
			zap.Int("already_checked", filter.Skipped()),
			zap.Int("to_check", total),
		)
		return source.FromSlice(items), total, wl.Dropped(), nil
	}
}

func buildProber(cfg config.Config, opts Options, clock Clock, logger *zap.Logger) (*prober.Prober, error) {
	client := opts.ProbeClient
	if client == nil {
		c, err := httpx.NewClient(httpx.ClientConfig{
			Timeout:         cfg.Probe.Timeout,
			ProxyURL:        cfg.Probe.ProxyURL,
			MaxConnsPerHost: cfg.Scheduler.Concurrency,
		})
		if err != nil {
			return nil, err
		}
		client = c
	}
	popts := []prober.Option{
		prober.WithRetryPolicy(prober.NewExponentialRetryPolicy(retryConfig(cfg))),
		prober.WithPauser(opts.Pauser),
		prober.WithClock(clock),
		prober.WithLogger(logger),
		prober.WithLimiter(ratelimit.New(limiterConfig(cfg, opts.Pauser))),
	}
	p, err := prober.New(prober.Config{
		URLTemplate:  cfg.Probe.URLTemplate,
		UserAgent:    cfg.Probe.UserAgent,
		MaxBodyBytes: cfg.Probe.MaxBodyBytes,
	}, client, popts...)
	if err != nil {
		return nil, fmt.Errorf("build prober: %w", err)
	}
	return p, nil
}

// retryConfig maps probe settings onto the retry policy. backoff_jitter is a
// fraction of each delay, not a duration.
func limiterConfig(cfg config.Config, pauser prober.Pauser) ratelimit.Config {
	lc := ratelimit.Config{
		RPS:   cfg.Probe.RequestsPerSecond,
		Burst: cfg.Probe.Burst,
	}
	if pauser != nil {
		lc.Pause = pauser.Pause
	}
	return lc
}

func retryConfig(cfg config.Config) prober.RetryConfig {
	return prober.RetryConfig{
		MaxAttempts: cfg.Probe.MaxAttempts,
		BaseDelay:   cfg.Probe.BackoffBase,
		MaxDelay:    cfg.Probe.BackoffMax,
		Jitter:      cfg.Probe.BackoffJitter,
	}
}

func buildSinks(opts Options, p *prober.Prober, logger *zap.Logger) []progress.Sink {
	out := []progress.Sink{sinks.NewLogSink(logger.Named("events"))}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if prom, err := sinks.NewPrometheusSink(reg); err != nil {
		logger.Warn("prometheus progress sink disabled", zap.Error(err))
	} else {
		out = append(out, prom)
	}
	if opts.Repository != nil {
		out = append(out, sinks.NewStoreSink(opts.Repository, logger))
	}
	if opts.Publisher != nil {
		out = append(out, sinks.NewPublishSink(opts.Publisher, p.URLFor, logger))
	}
	return out
}

// startServer runs the status server for the lifetime of the run when
// enabled. The returned func stops it.
func startServer(
	ctx context.Context,
	cfg config.Config,
	opts Options,
	reporter *progress.Reporter,
	logger *zap.Logger,
) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := api.NewServer(api.Options{
		Progress: reporter,
		Runs:     opts.Repository,
		Ready:    readiness(opts.Repository),
		Logger:   logger,
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(srvCtx, cfg.Server.Addr); err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// readiness pings the mirror when it supports it.
func readiness(repo store.CheckRepository) func(context.Context) error {
	p, ok := repo.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping
}

func export(ctx context.Context, cfg config.Config, blobs store.BlobStore, runID uuid.UUID, logger *zap.Logger) []string {
	exp, err := storage.NewExporter(blobs, cfg.Export.Prefix, logger)
	if err != nil {
		logger.Warn("export disabled", zap.Error(err))
		return nil
	}
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()
	uris, err := exp.Export(exportCtx, runID, cfg.Results.FullLog, cfg.Results.AvailableLog)
	if err != nil {
		logger.Warn("log export failed", zap.Error(err))
	}
	return uris
}
