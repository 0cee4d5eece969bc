// Package source produces the stream of candidates fed to the scheduler.
//
// Sources are pulled by a single goroutine and are not safe for concurrent use.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Source yields normalized candidates one at a time. Next returns io.EOF once
// the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Sized is implemented by sources that know their length up front.
type Sized interface {
	Len() int
}

// Slice is an in-memory Source.
type Slice struct {
	items []string
	pos   int
}

// FromSlice wraps items as a Source. The slice is not copied.
func FromSlice(items []string) *Slice {
	return &Slice{items: items}
}

// Next implements Source.
func (s *Slice) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("slice source: %w", err)
	}
	if s.pos >= len(s.items) {
		return "", io.EOF
	}
	c := s.items[s.pos]
	s.pos++
	return c, nil
}

// Len reports the total number of items.
func (s *Slice) Len() int {
	return len(s.items)
}

// Collect drains src into a slice.
func Collect(ctx context.Context, src Source) ([]string, error) {
	var out []string
	for {
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}
