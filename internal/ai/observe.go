package ai

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/spigell/skill-mapper/internal/ai")

// ObserveFunc receives the outcome of every model call.
type ObserveFunc func(model, schema string, elapsed time.Duration, err error)

type observed struct {
	next    Model
	observe ObserveFunc
}

// Observe wraps m with a tracing span and an optional callback per call.
func Observe(m Model, fn ObserveFunc) Model {
	return &observed{next: m, observe: fn}
}

func (o *observed) Name() string { return o.next.Name() }

func (o *observed) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "ai.Generate", trace.WithAttributes(
		attribute.String("ai.model", o.next.Name()),
		attribute.String("ai.schema", req.SchemaName),
	))
	defer span.End()

	start := time.Now()
	out, err := o.next.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if o.observe != nil {
		o.observe(o.next.Name(), req.SchemaName, time.Since(start), err)
	}

	return out, err
}
