package vanity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the verdict recorded for a candidate.
type Status string

const (
	// StatusAvailable means the vanity URL is unclaimed.
	StatusAvailable Status = "available"
	// StatusTaken means a profile already owns the vanity URL.
	StatusTaken Status = "taken"
	// StatusError means no verdict could be reached.
	StatusError Status = "error"
)

var (
	// ErrSourceUnavailable signals the candidate source failed mid-run. Fatal after drain.
	ErrSourceUnavailable = errors.New("candidate source unavailable")
	// ErrSourceEmpty signals the source produced zero usable candidates.
	ErrSourceEmpty = errors.New("candidate source empty")
	// ErrSinkWrite signals a durable write failed.
	ErrSinkWrite = errors.New("result sink write failed")
	// ErrInvalidCandidate is returned by the normalizer for unusable names.
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// ParseStatus converts a persisted status string into a Status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusAvailable, StatusTaken, StatusError:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// CheckRecord is the immutable outcome of checking one candidate.
// HTTPStatus is 0 when no HTTP response was received.
type CheckRecord struct {
	Candidate  string    `json:"candidate"`
	Status     Status    `json:"status"`
	HTTPStatus int       `json:"http_status"`
	Note       string    `json:"note,omitempty"`
	Attempts   int       `json:"attempts"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Available reports whether the record is an available verdict.
func (r CheckRecord) Available() bool {
	return r.Status == StatusAvailable
}
