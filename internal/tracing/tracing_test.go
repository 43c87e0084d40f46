package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestStartReturnsSpan(t *testing.T) {
	tr := New(
		WithTracerName("test"),
		WithSessionID("sess-1"),
		WithAttributes(attribute.String("test.attr", "ok")),
	)

	ctx, span := tr.StartNavigation(context.Background(), "/users", "page-1")
	if span == nil {
		t.Fatal("StartNavigation() returned nil span")
	}
	_ = trace.SpanContextFromContext(ctx) // Should not panic
	End(span, nil, attribute.Int("livesync.patch_count", 3))

	_, span = tr.StartExec(context.Background(), "c1", true)
	End(span, errors.New("boom"))
}

func TestNilTracerIsNoop(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.StartExec(context.TODO(), "c1", false)
	if ctx == nil || span == nil {
		t.Fatal("nil tracer should return a usable context and span")
	}
	End(span, nil)
	End(nil, errors.New("ignored"))
}

func TestConfigDefaults(t *testing.T) {
	tr := New()
	if tr.tracer == nil {
		t.Fatal("tracer not resolved")
	}
	if len(tr.base) != 0 {
		t.Errorf("base attributes = %v, want none", tr.base)
	}
}
