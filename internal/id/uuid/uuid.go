// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID returns a time-ordered UUIDv7 so runs sort by start time in the
// runs table.
func NewRunID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// MustRunID is NewRunID falling back to a random v4 ID.
func MustRunID() uuid.UUID {
	if id, err := NewRunID(); err == nil {
		return id
	}
	return uuid.New()
}
