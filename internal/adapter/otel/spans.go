package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "aegis"

// StartDecisionSpan starts a span for one policy evaluation.
func StartDecisionSpan(ctx context.Context, actionID, capability string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decide",
		trace.WithAttributes(
			attribute.String("action.id", actionID),
			attribute.String("action.capability", capability),
		),
	)
}

// StartRespondSpan starts a span for an approval response.
func StartRespondSpan(ctx context.Context, requestID, responderID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "respond",
		trace.WithAttributes(
			attribute.String("approval.id", requestID),
			attribute.String("approval.responder", responderID),
		),
	)
}

// StartExecuteSpan starts a span for handing an action to the executor.
func StartExecuteSpan(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("approval.id", requestID),
		),
	)
}
