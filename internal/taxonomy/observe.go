package taxonomy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/spigell/skill-mapper/internal/taxonomy")

// ObserveFunc receives the outcome of every search.
type ObserveFunc func(source string, elapsed time.Duration, err error)

type observed struct {
	next    Client
	observe ObserveFunc
}

// Observe wraps c with a tracing span and an optional callback per search.
func Observe(c Client, fn ObserveFunc) Client {
	return &observed{next: c, observe: fn}
}

func (o *observed) Name() string { return o.next.Name() }

func (o *observed) Search(ctx context.Context, query, language string, limit int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "taxonomy.Search", trace.WithAttributes(
		attribute.String("taxonomy.source", o.next.Name()),
		attribute.String("taxonomy.language", language),
		attribute.Int("taxonomy.limit", limit),
	))
	defer span.End()

	start := time.Now()
	out, err := o.next.Search(ctx, query, language, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("taxonomy.results", len(out)))

	if o.observe != nil {
		o.observe(o.next.Name(), time.Since(start), err)
	}
	return out, err
}
