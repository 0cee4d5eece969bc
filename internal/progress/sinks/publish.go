package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
	"github.com/JakeFAU/steam-vanity-checker/internal/publisher"
)

// PublishSink announces every available candidate through a Publisher.
type PublishSink struct {
	pub    publisher.Publisher
	urlFor func(string) string
	logger *zap.Logger
}

// NewPublishSink builds a PublishSink. urlFor may be nil.
func NewPublishSink(pub publisher.Publisher, urlFor func(string) string, logger *zap.Logger) *PublishSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishSink{pub: pub, urlFor: urlFor, logger: logger}
}

// Consume publishes available records and ignores everything else. A failed
// notice does not stop the rest of the batch.
func (s *PublishSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if evt.Stage != progress.StageCheckDone || !evt.Record.Available() {
			continue
		}
		notice := publisher.AvailableNotice{
			RunID:     evt.RunID,
			Candidate: evt.Record.Candidate,
			CheckedAt: evt.Record.CheckedAt,
		}
		if s.urlFor != nil {
			notice.URL = s.urlFor(evt.Record.Candidate)
		}
		if err := s.pub.Publish(ctx, notice); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", notice.Candidate, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; the publisher is closed by its owner.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
