package stream

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/secdrill/phishwatch/internal/stream"

// startRunSpan starts the span covering one run's stream session.
func startRunSpan(ctx context.Context, runID string, p Params) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "simulation.stream")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.scenario_id", p.ScenarioID),
		attribute.String("run.offender_id", p.OffenderID),
		attribute.String("run.victim_id", p.VictimID),
	)
	return ctx, span
}
