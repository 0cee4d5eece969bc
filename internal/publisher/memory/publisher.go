// Package memory contains an in-memory publisher for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/steam-vanity-checker/internal/publisher"
)

// Publisher stores published notices for inspection.
type Publisher struct {
	mu      sync.RWMutex
	notices []publisher.AvailableNotice
	err     error
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every later Publish return err.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Publish records the notice.
func (p *Publisher) Publish(_ context.Context, notice publisher.AvailableNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.notices = append(p.notices, notice)
	return nil
}

// Notices returns a copy of the recorded notices.
func (p *Publisher) Notices() []publisher.AvailableNotice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.AvailableNotice, len(p.notices))
	copy(out, p.notices)
	return out
}
