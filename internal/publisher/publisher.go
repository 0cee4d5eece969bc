// Package publisher announces available vanity names to downstream systems.
package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AvailableNotice is the payload published for every available candidate.
type AvailableNotice struct {
	RunID     uuid.UUID `json:"run_id"`
	Candidate string    `json:"candidate"`
	URL       string    `json:"url,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Publisher sends notices. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, notice AvailableNotice) error
}
