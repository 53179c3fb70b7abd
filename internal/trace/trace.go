// Package trace wraps OpenTelemetry for the bot's cycle, broker and report
// spans. Tracing is off unless LOG_TRACING_ENABLED is set, and every helper
// here degrades to a no-op in that case so callers never branch on it.
package trace

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "mtf-signal-bot"

// Version is stamped on the service resource.
var Version = "dev"

type pipeline struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	sink     io.Closer
}

var (
	mu     sync.RWMutex
	active *pipeline
)

// Init wires the span exporter. Spans go to the file named by TRACE_OUTPUT,
// or to stdout when it is unset. Calling Init again replaces the previous
// pipeline after flushing it.
func Init() error {
	on, _ := strconv.ParseBool(os.Getenv("LOG_TRACING_ENABLED"))
	if !on {
		return nil
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}

	mu.Lock()
	prev := active
	active = p
	mu.Unlock()

	otel.SetTracerProvider(p.provider)
	if prev != nil {
		return prev.close(context.Background())
	}
	return nil
}

func newPipeline() (*pipeline, error) {
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}

	var sink io.Closer
	if path := os.Getenv("TRACE_OUTPUT"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		opts = append(opts, stdouttrace.WithWriter(f))
		sink = f
	}

	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		closeSink(sink)
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		closeSink(sink)
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &pipeline{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		sink:     sink,
	}, nil
}

func (p *pipeline) close(ctx context.Context) error {
	err := p.provider.Shutdown(ctx)
	if p.sink != nil {
		err = errors.Join(err, p.sink.Close())
	}
	return err
}

func closeSink(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// Shutdown flushes pending spans and turns tracing off.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := active
	active = nil
	mu.Unlock()

	if p == nil {
		return nil
	}
	return p.close(ctx)
}

func current() *pipeline {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

func Enabled() bool {
	return current() != nil
}

// StartSpan opens a child of whatever span ctx carries. With tracing off the
// returned span is the one already in ctx, usually the no-op span.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	p := current()
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, spanName, opts...)
}

func recording(ctx context.Context) (trace.Span, bool) {
	if current() == nil {
		return nil, false
	}
	span := trace.SpanFromContext(ctx)
	return span, span.SpanContext().IsValid()
}

func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if span, ok := recording(ctx); ok {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span, ok := recording(ctx); ok {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// GetTraceFields returns the hex ids used to correlate log lines with spans.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	span, ok := recording(ctx)
	if !ok {
		return "", "", false
	}
	sc := span.SpanContext()
	return sc.TraceID().String(), sc.SpanID().String(), true
}
