package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Carrier holds W3C trace context inside a message body, for transports without headers.
type Carrier struct {
	Traceparent string `json:"traceparent,omitempty"`
	Tracestate  string `json:"tracestate,omitempty"`
}

// CarrierFrom captures the span active in ctx. Outside a span it is empty.
func CarrierFrom(ctx context.Context) Carrier {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return Carrier{}
	}
	m := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, m)
	return Carrier{Traceparent: m.Get("traceparent"), Tracestate: m.Get("tracestate")}
}

func (c Carrier) Empty() bool {
	return c.Traceparent == ""
}

// Resume continues the remote span in c on top of ctx. An empty carrier returns ctx.
func (c Carrier) Resume(ctx context.Context) context.Context {
	if c.Empty() {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": c.Traceparent,
		"tracestate":  c.Tracestate,
	})
}
