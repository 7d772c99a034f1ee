package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/crawlcoord/internal/progress"
)

// LogSink writes each event as a structured log line. Failures and data-loss
// warnings are logged at warn level so they stand out from routine progress.
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
			zap.String("crawl_id", evt.CrawlUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.String("operation", evt.Operation),
			zap.String("phase", string(evt.Phase)),
			zap.String("kind", string(evt.Kind)),
			zap.Int64("items", evt.Items),
			zap.Duration("dur", evt.Dur),
			zap.String("detail", evt.Detail),
		}
		s.logger.Log(levelFor(evt.Stage), "crawl diagnostic", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageOpError, progress.StageCrawlError, progress.StageDataLoss,
		progress.StageInconclusive, progress.StageBoundReached, progress.StageMissing:
		return zapcore.WarnLevel
	case progress.StageDuplicate:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
