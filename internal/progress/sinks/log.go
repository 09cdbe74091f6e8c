// Package sinks contains progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/progress"
)

// Log writes progress events to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a Log sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Consume logs a single event at a stage-appropriate level.
func (s *Log) Consume(_ context.Context, evt progress.Event) error {
	fields := []zap.Field{
		zap.String("job_id", evt.JobID),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.URL != "" {
		fields = append(fields, zap.String("url", evt.URL), zap.Int("depth", evt.Depth))
	}
	if evt.Dur > 0 {
		fields = append(fields, zap.Duration("duration", evt.Dur))
	}
	if evt.Reason != "" {
		fields = append(fields, zap.String("reason", evt.Reason))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	switch evt.Stage {
	case progress.StageJobError, progress.StageScriptError:
		s.logger.Warn("crawl progress", fields...)
	case progress.StagePageSkipped, progress.StageScriptDedup, progress.StageSummarizeFallback:
		s.logger.Debug("crawl progress", fields...)
	default:
		s.logger.Info("crawl progress", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *Log) Close(context.Context) error {
	return nil
}
