package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunStatus mirrors the runs status column.
type RunStatus string

// Run statuses.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunCounts are the final counters of a run.
type RunCounts struct {
	Checked   int
	Available int
	Taken     int
	Errors    int
}

// Run models one row of the runs table.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	// Total is -1 when the run streamed from an unbounded source.
	Total        int
	Counts       RunCounts
	ErrorMessage *string
}

// CheckRepository mirrors check records and run lifecycle into a database.
// The local full log stays authoritative; the mirror is best effort.
type CheckRepository interface {
	UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time, total int) error
	InsertChecks(ctx context.Context, runID uuid.UUID, recs []vanity.CheckRecord) error
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, counts RunCounts, errMsg *string) error
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
}

// BlobStore uploads artifacts and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
