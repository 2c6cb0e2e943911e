// Package logging builds the zap loggers used across the core and threads
// a per-run trace id through context for correlated structured logs.
package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// New builds a production zap logger. In tests callers should use
// zap.NewNop() or zaptest instead.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	return cfg.Build()
}

type traceIDKey struct{}

// WithTraceID stamps ctx with a trace id. An empty id generates a fresh one.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext returns the trace id stamped by WithTraceID, or "" if
// none was set.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// WithTrace returns logger with a trace_id field populated from ctx.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("trace_id", TraceIDFromContext(ctx)))
}
