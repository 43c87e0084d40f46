// Package tracing wraps OpenTelemetry spans for navigation and remote
// execution.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it in
// main() before starting a session:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
// Without a configured provider every span is a no-op.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for livesync sessions.
const defaultTracerName = "livesync"

// Config configures a Tracer.
type Config struct {
	// TracerName is the name of the tracer (default: "livesync").
	TracerName string

	// SessionID is attached to every span when set.
	SessionID string

	// Attributes are attached to every span.
	Attributes []attribute.KeyValue
}

// Option configures a Tracer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithSessionID attaches the session ID to every span.
func WithSessionID(id string) Option {
	return func(c *Config) {
		c.SessionID = id
	}
}

// WithAttributes attaches constant attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *Config) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// Tracer starts session spans. A nil *Tracer starts no-op spans.
type Tracer struct {
	tracer trace.Tracer
	base   []attribute.KeyValue
}

// New creates a Tracer from the global tracer provider.
func New(opts ...Option) *Tracer {
	config := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	base := append([]attribute.KeyValue(nil), config.Attributes...)
	if config.SessionID != "" {
		base = append(base, attribute.String("livesync.session_id", config.SessionID))
	}
	return &Tracer{
		tracer: otel.Tracer(config.TracerName),
		base:   base,
	}
}

// StartNavigation starts a span for one navigation request.
func (t *Tracer) StartNavigation(ctx context.Context, path string, pageUID string) (context.Context, trace.Span) {
	return t.start(ctx, "livesync.navigate",
		attribute.String("livesync.path", path),
		attribute.String("livesync.page_uid", pageUID))
}

// StartExec starts a span for one remote execution.
func (t *Tracer) StartExec(ctx context.Context, correlationUID string, feedback bool) (context.Context, trace.Span) {
	return t.start(ctx, "livesync.execute_js",
		attribute.String("livesync.correlation_uid", correlationUID),
		attribute.Bool("livesync.feedback", feedback))
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	all := make([]attribute.KeyValue, 0, len(t.base)+len(attrs))
	all = append(all, t.base...)
	all = append(all, attrs...)
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}

// End records err on the span, sets its status and ends it.
func End(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
