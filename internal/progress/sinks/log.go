package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
)

// LogSink emits structured logs for debugging progress streams.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageCheckDone:
			fields = append(fields,
				zap.String("candidate", evt.Record.Candidate),
				zap.String("status", string(evt.Record.Status)),
				zap.Int("http_status", evt.Record.HTTPStatus),
				zap.Int("attempts", evt.Record.Attempts),
			)
		case progress.StageRunStart:
			fields = append(fields, zap.Int("total", evt.Total))
		default:
			fields = append(fields,
				zap.Int("checked", evt.State.Checked),
				zap.Int("available", evt.State.Available),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		} else if evt.Record.Note != "" {
			fields = append(fields, zap.String("note", evt.Record.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
