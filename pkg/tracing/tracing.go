// Package tracing records reactive runtime activity as OpenTelemetry spans.
//
// Every effect run, memo recomputation, drain and scope disposal becomes a
// span carrying the real start and end time measured by the runtime.
// Panics, update loops and use-after-dispose accesses are recorded as
// error spans.
//
// Example:
//
//	t := tracing.New(tracing.WithTracerName("my-app"))
//	rt := reactive.NewRuntime(reactive.WithEventSink(t.Sink()))
//
// The tracer comes from the global OpenTelemetry provider unless
// WithTracerProvider is given. Configure it in main():
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// DefaultTracerName is the instrumentation name used when none is given.
const DefaultTracerName = "github.com/vango-dev/reactive"

// Config configures a Tracer.
type Config struct {
	// TracerName is the instrumentation name (default: DefaultTracerName).
	TracerName string

	// Provider supplies the tracer. Default: otel.GetTracerProvider().
	Provider trace.TracerProvider

	// Context is the parent of every span. Default: context.Background().
	Context context.Context

	// Filter decides which events become spans. If nil, all events do.
	Filter func(reactive.Event) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(reactive.Event) []attribute.KeyValue
}

// Option configures a Tracer.
type Option func(*Config)

// WithTracerName sets the instrumentation name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider the tracer is taken from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.Provider = tp
	}
}

// WithContext sets the parent context of the spans.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		c.Context = ctx
	}
}

// WithEventFilter sets the filter deciding which events are traced.
func WithEventFilter(filter func(reactive.Event) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a function adding attributes to every span.
func WithAttributeExtractor(extractor func(reactive.Event) []attribute.KeyValue) Option {
	return func(c *Config) {
		c.AttributeExtractor = extractor
	}
}

// Tracer turns runtime events into spans.
type Tracer struct {
	config Config
	tracer trace.Tracer
}

// New returns a Tracer.
func New(opts ...Option) *Tracer {
	config := Config{TracerName: DefaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	if config.Context == nil {
		config.Context = context.Background()
	}

	return &Tracer{
		config: config,
		tracer: config.Provider.Tracer(config.TracerName),
	}
}

// Sink returns an event sink that records spans.
func (t *Tracer) Sink() reactive.EventSink {
	return t.Record
}

// Record emits the span for one event.
func (t *Tracer) Record(ev reactive.Event) {
	if t.config.Filter != nil && !t.config.Filter(ev) {
		return
	}

	start := ev.Start
	if start.IsZero() {
		start = time.Now()
	}

	attrs := Attributes(ev)
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(ev)...)
	}

	_, span := t.tracer.Start(t.config.Context, SpanName(ev),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(start),
	)

	if ev.Err != nil {
		span.RecordError(ev.Err, trace.WithTimestamp(start.Add(ev.Duration)))
		span.SetStatus(codes.Error, ev.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(start.Add(ev.Duration)))
}

// SpanName returns "reactive.<kind>", followed by the node name when the
// node has one.
func SpanName(ev reactive.Event) string {
	name := "reactive." + ev.Kind.String()
	if ev.Name != "" {
		name += " " + ev.Name
	}
	return name
}

// Attributes returns the span attributes describing ev.
func Attributes(ev reactive.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("reactive.event", ev.Kind.String()),
	}
	if !ev.Node.IsZero() {
		attrs = append(attrs,
			attribute.String("reactive.node", ev.Node.String()),
			attribute.String("reactive.node_kind", ev.NodeKind.String()),
		)
	}
	if ev.Name != "" {
		attrs = append(attrs, attribute.String("reactive.name", ev.Name))
	}
	if ev.Scope != 0 {
		attrs = append(attrs, attribute.Int64("reactive.scope", int64(ev.Scope)))
	}

	switch ev.Kind {
	case reactive.EventMemoRecompute:
		attrs = append(attrs, attribute.Bool("reactive.changed", ev.Changed))
	case reactive.EventDrain:
		attrs = append(attrs, attribute.Int("reactive.effects", ev.Effects))
	case reactive.EventUpdateLoop:
		attrs = append(attrs, attribute.Int("reactive.runs", ev.Runs))
	case reactive.EventUseAfterDispose:
		attrs = append(attrs, attribute.String("reactive.op", ev.Op))
	}
	return attrs
}
