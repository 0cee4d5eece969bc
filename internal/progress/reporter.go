package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/clock/system"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// UnknownTotal marks a run whose candidate count is not known up front.
const UnknownTotal = -1

// RunState is the in-memory aggregate of one run. It is not persisted;
// counters across restarts come from replaying the full log.
type RunState struct {
	RunID     uuid.UUID `json:"run_id"`
	Total     int       `json:"total"`
	Checked   int       `json:"checked"`
	Available int       `json:"available"`
	Taken     int       `json:"taken"`
	Errors    int       `json:"errors"`
	StartedAt time.Time `json:"started_at"`
}

// TotalKnown reports whether Total is meaningful.
func (s RunState) TotalKnown() bool {
	return s.Total >= 0
}

// Snapshot is a point-in-time view of a run with derived timings.
type Snapshot struct {
	RunState
	Elapsed  time.Duration
	ETA      time.Duration
	ETAKnown bool
	Finished bool
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Printer renders per-record and status lines for a human operator.
type Printer interface {
	Record(rec vanity.CheckRecord, snap Snapshot)
	Status(snap Snapshot)
}

// ReporterConfig tunes console output.
type ReporterConfig struct {
	// Every renders a status line after this many completions. 0 disables periodic lines.
	Every int
	// Verbose prints taken and error records too. Available records always print.
	Verbose bool
}

// ReporterOption customizes a Reporter.
type ReporterOption func(*Reporter)

// WithPrinter sets the console printer.
func WithPrinter(p Printer) ReporterOption {
	return func(r *Reporter) { r.printer = p }
}

// WithEmitter sets the event emitter, usually a Hub.
func WithEmitter(e Emitter) ReporterOption {
	return func(r *Reporter) { r.emitter = e }
}

// WithClock overrides the time source.
func WithClock(c Clock) ReporterOption {
	return func(r *Reporter) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ReporterOption {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reporter is the single owner of RunState. Observe must be called from the
// scheduler's collector; Snapshot may be called from any goroutine.
type Reporter struct {
	cfg     ReporterConfig
	printer Printer
	emitter Emitter
	clock   Clock
	logger  *zap.Logger

	mu       sync.Mutex
	state    RunState
	finished bool
	current  atomic.Pointer[Snapshot]
}

// NewReporter builds a Reporter for runID.
func NewReporter(runID uuid.UUID, cfg ReporterConfig, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		cfg:    cfg,
		clock:  system.New(),
		logger: zap.NewNop(),
		state:  RunState{RunID: runID, Total: UnknownTotal},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.publish()
	return r
}

// Start stamps the run start and records the planned total. Pass
// UnknownTotal for streaming sources.
func (r *Reporter) Start(total int) {
	r.mu.Lock()
	if total < 0 {
		total = UnknownTotal
	}
	r.state.Total = total
	r.state.StartedAt = r.clock.Now()
	state := r.state
	r.publish()
	r.mu.Unlock()

	r.logger.Info("run started", zap.String("run_id", state.RunID.String()), zap.Int("total", total))
	r.emit(Event{RunID: state.RunID, TS: state.StartedAt, Stage: StageRunStart, Total: total})
}

// Observe folds rec into the run state and renders output.
func (r *Reporter) Observe(rec vanity.CheckRecord) Snapshot {
	r.mu.Lock()
	r.state.Checked++
	switch rec.Status {
	case vanity.StatusAvailable:
		r.state.Available++
	case vanity.StatusTaken:
		r.state.Taken++
	default:
		r.state.Errors++
	}
	r.publish()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if r.printer != nil {
		if rec.Available() || r.cfg.Verbose {
			r.printer.Record(rec, snap)
		}
		if r.cfg.Every > 0 && snap.Checked%r.cfg.Every == 0 {
			r.printer.Status(snap)
		}
	}
	r.emit(Event{RunID: snap.RunID, TS: rec.CheckedAt, Stage: StageCheckDone, Record: rec})
	return snap
}

// Finish marks the run complete. A non-nil runErr is reported as RUN_ERROR.
func (r *Reporter) Finish(runErr error) Snapshot {
	r.mu.Lock()
	if r.finished {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap
	}
	r.finished = true
	r.publish()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if r.printer != nil {
		r.printer.Status(snap)
	}
	evt := Event{RunID: snap.RunID, TS: r.clock.Now(), Stage: StageRunDone, State: snap.RunState, Dur: snap.Elapsed}
	if runErr != nil {
		evt.Stage = StageRunError
		evt.Note = runErr.Error()
	}
	r.emit(evt)
	r.logger.Info("run finished",
		zap.String("run_id", snap.RunID.String()),
		zap.Int("checked", snap.Checked),
		zap.Int("available", snap.Available),
		zap.Int("taken", snap.Taken),
		zap.Int("errors", snap.Errors),
		zap.Duration("elapsed", snap.Elapsed),
		zap.Error(runErr),
	)
	return snap
}

// Snapshot returns the latest published view with timings computed now.
func (r *Reporter) Snapshot() Snapshot {
	cur := r.current.Load()
	if cur == nil {
		return Snapshot{}
	}
	return r.derive(*cur)
}

func (r *Reporter) snapshotLocked() Snapshot {
	return r.derive(Snapshot{RunState: r.state, Finished: r.finished})
}

// publish stores an immutable copy for lock-free readers. Caller holds mu or
// is the constructor.
func (r *Reporter) publish() {
	snap := Snapshot{RunState: r.state, Finished: r.finished}
	r.current.Store(&snap)
}

func (r *Reporter) derive(snap Snapshot) Snapshot {
	if snap.StartedAt.IsZero() {
		return snap
	}
	snap.Elapsed = r.clock.Now().Sub(snap.StartedAt)
	if snap.Elapsed < 0 {
		snap.Elapsed = 0
	}
	total := snap.Total
	if !snap.TotalKnown() {
		total = 0
	}
	snap.ETA, snap.ETAKnown = ETA(snap.Elapsed, snap.Checked, total)
	return snap
}

func (r *Reporter) emit(evt Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}
