package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerRoundTrip(t *testing.T) {
	logger := zap.NewNop().Named("orders")
	ctx := WithLogger(context.Background(), logger)
	if got := Logger(ctx); got != logger {
		t.Fatal("expected the stored logger back")
	}
}

func TestLoggerFallsBack(t *testing.T) {
	if got := Logger(context.Background()); got != NoopLogger() {
		t.Fatal("expected the shared no-op logger when none is stored")
	}
	if got := Logger(nil); got != NoopLogger() {
		t.Fatal("expected the shared no-op logger for a nil context")
	}
	if got := Logger(WithLogger(context.Background(), nil)); got != NoopLogger() {
		t.Fatal("expected a nil logger to be replaced by the no-op logger")
	}
}

func TestTraceRoundTrip(t *testing.T) {
	info := TraceInfo{
		TraceID:   "105445aa7843bc8bf206b12000100000",
		SpanID:    "1b8d2dbdfc3a4f0a",
		Sampled:   true,
		ProjectID: "demo-project",
	}
	ctx := WithTrace(context.Background(), info)

	got, ok := Trace(ctx)
	if !ok {
		t.Fatal("expected trace info to be present")
	}
	if got != info {
		t.Fatalf("expected %+v got %+v", info, got)
	}
	if TraceID(ctx) != info.TraceID {
		t.Fatalf("expected trace id %q got %q", info.TraceID, TraceID(ctx))
	}
}

func TestTraceAbsent(t *testing.T) {
	if _, ok := Trace(context.Background()); ok {
		t.Fatal("expected no trace info on a fresh context")
	}
	if TraceID(context.Background()) != "" {
		t.Fatal("expected empty trace id on a fresh context")
	}
}
