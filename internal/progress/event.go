package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageCheckDone Stage = "CHECK_DONE"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageRunDone || s == StageRunError
}

// Event captures one run milestone or one completed check.
type Event struct {
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Record is set on CHECK_DONE.
	Record vanity.CheckRecord
	// Total is the planned candidate count on RUN_START, or -1 when unknown.
	Total int
	// State carries the final counters on RUN_DONE and RUN_ERROR.
	State RunState
	// Dur is the probe duration for checks and the run duration at the end.
	Dur  time.Duration
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageCheckDone:
		if e.Record.Candidate == "" {
			return errors.New("check done requires candidate")
		}
		if e.Record.Status == "" {
			return errors.New("check done requires status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
