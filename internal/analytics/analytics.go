package analytics

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Sink receives usage events. Implementations must never fail the
// caller, analytics is strictly best effort.
type Sink interface {
	RecordEvent(ctx context.Context, name string, props map[string]interface{})
}

// LogSink writes events to the structured log.
type LogSink struct{}

func (LogSink) RecordEvent(ctx context.Context, name string, props map[string]interface{}) {
	fields := make([]zap.Field, 0, len(props)+1)
	fields = append(fields, zap.String("event", name))
	for key, value := range props {
		fields = append(fields, zap.Any(key, value))
	}
	logutil.GetLogger(ctx).Info("analytics event", fields...)
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) RecordEvent(context.Context, string, map[string]interface{}) {}
