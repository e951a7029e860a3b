package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	otelcodes "go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/melodio/api/internal/platform/auth"
	"github.com/melodio/api/internal/platform/httpx"
	"github.com/melodio/api/internal/platform/requestctx"
)

// InjectLoggerMiddleware seeds the request context with the service logger so
// handlers and services log through the same core.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware emits one structured completion line per request
// carrying the identifiers order support cases are searched by: request id,
// trace id, user id and route.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			traceInfo, _ := requestctx.Trace(ctx)
			route := scrubRoute(routePattern(r))

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", scrubMethod(r.Method)),
				zap.String("route", route),
				zap.String("trace_id", traceInfo.TraceID),
			}
			if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
				fields = append(fields, zap.String("user_id", scrubUID(identity.UID)))
			}
			project := traceInfo.ProjectID
			if project == "" {
				project = projectID
			}
			if project != "" && traceInfo.TraceID != "" {
				fields = append(fields, zap.String("logging.googleapis.com/trace",
					"projects/"+project+"/traces/"+traceInfo.TraceID))
			}
			if ip := clientIP(r); ip != "" {
				fields = append(fields, zap.String("remote_ip", ip))
			}

			logger := requestctx.Logger(ctx).With(fields...)
			ctx = requestctx.WithLogger(ctx, logger)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			span := trace.SpanFromContext(ctx)
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					logCompletion(logger, span, route, http.StatusInternalServerError, start, sw.bytes)
					panic(rec)
				}
				logCompletion(logger, span, route, sw.status, start, sw.bytes)
			}()

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

// RecoveryMiddleware turns a handler panic into a logged 500 with the JSON
// error envelope instead of a dropped connection.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				logger := requestctx.Logger(r.Context())
				if logger == requestctx.NoopLogger() && fallback != nil {
					logger = fallback
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				httpx.WriteError(r.Context(), w, httpx.NewError("internal server error", http.StatusInternalServerError))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logCompletion(logger *zap.Logger, span trace.Span, route string, status int, start time.Time, bytes int64) {
	if span != nil {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if route != "" {
			span.SetAttributes(semconv.HTTPRoute(route))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(otelcodes.Error, http.StatusText(status))
		} else {
			span.SetStatus(otelcodes.Ok, http.StatusText(status))
		}
	}

	fields := []zap.Field{
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("bytes", bytes),
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request completed", fields...)
	case status >= http.StatusBadRequest:
		logger.Warn("request completed", fields...)
	default:
		logger.Info("request completed", fields...)
	}
}

// routePattern prefers the chi pattern so /orders/{orderID} aggregates as one
// route instead of one entry per order.
func routePattern(r *http.Request) string {
	if r == nil {
		return "/"
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL != nil && r.URL.Path != "" {
		return r.URL.Path
	}
	return "/"
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return scrub(addr, 64)
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	if status >= 100 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}
