// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/steam-vanity-checker/internal/store"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxRowsPerInsert keeps the bind parameter count under the Postgres limit.
const maxRowsPerInsert = 1000

// Config controls the Postgres connection pool used for check rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// CheckStore implements store.CheckRepository. Checks go to Table and runs to
// Table_runs.
type CheckStore struct {
	pool      querier
	table     string
	runsTable string
}

var _ store.CheckRepository = (*CheckStore)(nil)

// NewCheckStore connects a pool using cfg.
func NewCheckStore(ctx context.Context, cfg Config) (*CheckStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewCheckStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewCheckStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCheckStoreWithPool(pool querier, table string) (*CheckStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "vanity_checks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CheckStore{pool: pool, table: table, runsTable: table + "_runs"}, nil
}

// EnsureSchema creates both tables when missing.
func (s *CheckStore) EnsureSchema(ctx context.Context) error {
	runs := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	total INTEGER NOT NULL DEFAULT -1,
	checked INTEGER NOT NULL DEFAULT 0,
	available INTEGER NOT NULL DEFAULT 0,
	taken INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`, s.runsTable)
	if _, err := s.pool.Exec(ctx, runs); err != nil {
		return fmt.Errorf("create %s: %w", s.runsTable, err)
	}
	checks := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id UUID NOT NULL,
	candidate TEXT NOT NULL,
	status TEXT NOT NULL,
	http_status INTEGER,
	attempts INTEGER NOT NULL,
	note TEXT,
	checked_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, candidate)
)`, s.table)
	if _, err := s.pool.Exec(ctx, checks); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// UpsertRunStart inserts the run row in running state.
func (s *CheckStore) UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time, total int) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, started_at, status, total)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET started_at = EXCLUDED.started_at, total = EXCLUDED.total`, s.runsTable)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, string(store.RunRunning), total); err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// InsertChecks writes recs, ignoring rows already present for the run.
func (s *CheckStore) InsertChecks(ctx context.Context, runID uuid.UUID, recs []vanity.CheckRecord) error {
	for start := 0; start < len(recs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(recs))
		query, args := s.insertChecksQuery(runID, recs[start:end])
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert checks: %w", err)
		}
	}
	return nil
}

func (s *CheckStore) insertChecksQuery(runID uuid.UUID, recs []vanity.CheckRecord) (string, []any) {
	const cols = 7
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (run_id, candidate, status, http_status, attempts, note, checked_at) VALUES ", s.table)
	args := make([]any, 0, len(recs)*cols)
	for i, rec := range recs {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * cols
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		var code *int
		if rec.HTTPStatus > 0 {
			c := rec.HTTPStatus
			code = &c
		}
		args = append(args, runID, rec.Candidate, string(rec.Status), code, rec.Attempts, rec.Note, rec.CheckedAt)
	}
	b.WriteString(" ON CONFLICT (run_id, candidate) DO NOTHING")
	return b.String(), args
}

// CompleteRun stamps the final status and counters.
func (s *CheckStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	counts store.RunCounts,
	errMsg *string,
) error {
	query := fmt.Sprintf(`UPDATE %s
SET finished_at = $1, status = $2, checked = $3, available = $4, taken = $5, errors = $6, error_message = $7
WHERE id = $8`, s.runsTable)
	tag, err := s.pool.Exec(ctx, query,
		finishedAt, string(status), counts.Checked, counts.Available, counts.Taken, counts.Errors, errMsg, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

// GetRun loads one run row.
func (s *CheckStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := fmt.Sprintf(`SELECT id, started_at, finished_at, status, total, checked, available, taken, errors, error_message
FROM %s WHERE id = $1`, s.runsTable)
	var (
		run    store.Run
		status string
	)
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Total,
		&run.Counts.Checked,
		&run.Counts.Available,
		&run.Counts.Taken,
		&run.Counts.Errors,
		&run.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Run{}, store.ErrNotFound
	}
	if err != nil {
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	run.Status = store.RunStatus(status)
	return run, nil
}

// Ping checks the connection; the status server uses it for readiness.
func (s *CheckStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *CheckStore) Close() {
	s.pool.Close()
}
