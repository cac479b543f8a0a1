package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// Reconciler runs one pass over due suspension requests.
type Reconciler interface {
	Run(ctx context.Context) (domain.ReconcileReport, error)
}

// TracingReconciler wraps a reconciler run in a root span carrying the run report.
type TracingReconciler struct {
	next   Reconciler
	tracer trace.Tracer
}

// NewTracingReconciler creates a tracing decorator around the given reconciler.
func NewTracingReconciler(next Reconciler) *TracingReconciler {
	return &TracingReconciler{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (r *TracingReconciler) Run(ctx context.Context) (domain.ReconcileReport, error) {
	ctx, span := r.tracer.Start(ctx, "SuspensionReconciler.Run")
	defer span.End()

	report, err := r.next.Run(ctx)
	span.SetAttributes(
		attribute.String("reconcile.run_id", report.RunID),
		attribute.Int("reconcile.released", report.Released),
		attribute.Int("reconcile.claimed", report.Claimed),
		attribute.Int("reconcile.executed", report.Executed),
		attribute.Int("reconcile.failed", report.Failed),
	)
	finish(span, err)
	return report, err
}
