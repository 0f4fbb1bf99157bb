package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/progress"
)

// LogSink writes each progress event as a structured log line. Page events are
// logged at debug level; everything else at info.
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

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		if evt.CategoryID != "" {
			fields = append(fields, zap.String("category_id", evt.CategoryID))
		}
		if evt.Page > 0 {
			fields = append(fields, zap.Int("page", evt.Page), zap.String("status_class", string(evt.StatusClass)))
		}
		if evt.Products > 0 {
			fields = append(fields, zap.Int64("products", evt.Products))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StagePageDone {
			s.logger.Debug("progress event", fields...)
			continue
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
