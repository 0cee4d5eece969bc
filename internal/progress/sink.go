package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls and honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it so the reporter stays
// agnostic about buffering and persistence.
type Emitter interface {
	Emit(evt Event)
}

// SinkFunc adapts a function to Sink with a no-op Close.
type SinkFunc func(ctx context.Context, batch []Event) error

// Consume implements Sink.
func (f SinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

// Close implements Sink.
func (SinkFunc) Close(context.Context) error {
	return nil
}
