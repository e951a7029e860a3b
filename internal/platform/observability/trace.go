package observability

import (
	"encoding/binary"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/melodio/api/internal/platform/requestctx"
)

const traceContextHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/melodio/api/internal/platform/observability")

// TraceMiddleware links each request into Cloud Trace. An incoming
// X-Cloud-Trace-Context header becomes the remote parent so a checkout that
// fans out from the storefront stays one trace; the started server span's ids
// are what end up in requestctx and on the response header.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if parent, ok := parseTraceHeader(r.Header.Get(traceContextHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
			}

			ctx, span := tracer.Start(ctx, spanName(r), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			span.SetAttributes(requestAttributes(r)...)

			spanCtx := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID:   spanCtx.TraceID().String(),
				SpanID:    spanCtx.SpanID().String(),
				Sampled:   spanCtx.IsSampled(),
				ProjectID: projectID,
			}
			ctx = requestctx.WithTrace(ctx, info)

			sampled := "0"
			if info.Sampled {
				sampled = "1"
			}
			w.Header().Set(traceContextHeader, info.TraceID+"/"+info.SpanID+";o="+sampled)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseTraceHeader decodes "TRACE_ID/SPAN_ID;o=1" into a remote span context.
// Cloud load balancers send the span id in decimal, SDK clients in hex, so
// both are accepted.
func parseTraceHeader(header string) (trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	slash := strings.IndexByte(header, '/')
	if slash < 0 {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.TraceIDFromHex(header[:slash])
	if err != nil {
		return trace.SpanContext{}, false
	}

	rest := header[slash+1:]
	sampled := false
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		sampled = traceSampled(rest[semi+1:])
		rest = rest[:semi]
	}

	spanID, ok := parseSpanID(rest)
	if !ok {
		return trace.SpanContext{}, false
	}

	flags := trace.TraceFlags(0)
	if sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func parseSpanID(value string) (trace.SpanID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return trace.SpanID{}, false
	}

	if len(value) <= 16 {
		padded := strings.Repeat("0", 16-len(value)) + value
		if spanID, err := trace.SpanIDFromHex(padded); err == nil {
			return spanID, true
		}
	}

	num, err := strconv.ParseUint(value, 10, 64)
	if err != nil || num == 0 {
		return trace.SpanID{}, false
	}
	var spanID trace.SpanID
	binary.BigEndian.PutUint64(spanID[:], num)
	return spanID, true
}

func traceSampled(options string) bool {
	for _, opt := range strings.Split(options, ";") {
		if strings.TrimSpace(opt) == "o=1" {
			return true
		}
	}
	return false
}

func spanName(r *http.Request) string {
	path := "/"
	if r.URL != nil && r.URL.Path != "" {
		path = r.URL.Path
	}
	return r.Method + " " + path
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme),
	}
	if r.URL != nil {
		if r.URL.Path != "" {
			attrs = append(attrs, attribute.String("url.path", r.URL.Path))
		}
		if target := r.URL.RequestURI(); target != "" {
			attrs = append(attrs, attribute.String("url.full", target))
		}
	}
	if r.Host != "" {
		attrs = append(attrs, attribute.String("server.address", r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}
