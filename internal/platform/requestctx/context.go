package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

type traceKey struct{}

var fallbackLogger = zap.NewNop()

// TraceInfo is the Cloud Trace linkage for one API request. ProjectID rides
// along so log lines can be stitched to the trace in Cloud Logging.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = fallbackLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger retrieves the request logger, falling back to a no-op logger so
// callers never need a nil check.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return fallbackLogger
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallbackLogger
}

// NoopLogger exposes the shared fallback logger instance.
func NoopLogger() *zap.Logger { return fallbackLogger }

// WithTrace stores trace metadata on the context.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey{}, info)
}

// Trace retrieves the trace metadata when the trace middleware has run.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceID extracts the trace identifier, empty when absent.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}
