// Package sinks provides progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/instasweep/instasweep/internal/progress"
)

// LogSink emits structured logs for the progress stream. Per-probe
// events are logged at debug; batch and run milestones at info, which
// is what gives an attended sweep its live counter line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageProbeDone:
		s.logger.Debug("probe done",
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("code", evt.Code),
			zap.String("outcome", string(evt.Outcome)),
			zap.Duration("dur", evt.Dur),
		)
	case progress.StageBatchCommit:
		s.logger.Info("batch committed",
			zap.String("run_id", evt.RunUUID().String()),
			zap.Int("batch", evt.Batch),
			zap.Int("records", evt.Records),
			zap.Int("found", evt.Found),
			zap.Int("not_found", evt.NotFound),
			zap.Int("errors", evt.Errors),
		)
	default:
		s.logger.Info("run milestone",
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
