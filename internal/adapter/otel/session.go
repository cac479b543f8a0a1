package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// TracingSessionRepository wraps a domain.SessionRepository with spans and
// session lifecycle counters.
type TracingSessionRepository struct {
	next   domain.SessionRepository
	tracer trace.Tracer

	started   metric.Int64Counter
	rejected  metric.Int64Counter
	completed metric.Int64Counter
}

// Compile-time check: TracingSessionRepository implements domain.SessionRepository.
var _ domain.SessionRepository = (*TracingSessionRepository)(nil)

// NewTracingSessionRepository creates a tracing decorator around the given repository.
func NewTracingSessionRepository(next domain.SessionRepository) *TracingSessionRepository {
	meter := otel.Meter(instrumentationName)
	return &TracingSessionRepository{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
		started: counter(meter, "sessiongate.sessions.started",
			"Sessions admitted."),
		rejected: counter(meter, "sessiongate.sessions.quota_rejected",
			"Session starts refused because the plan quota was reached."),
		completed: counter(meter, "sessiongate.sessions.completed",
			"Sessions terminated, by billability and end reason."),
	}
}

// counter creates an Int64Counter, falling back to a no-op instrument.
func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{session}"))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

func (r *TracingSessionRepository) CreateWithinQuota(ctx context.Context, s domain.Session, limit *int, periodStart time.Time) error {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.CreateWithinQuota",
		trace.WithAttributes(
			attribute.String("session.id", s.ID),
			attribute.String("tenant.id", s.TenantID),
			attribute.Bool("quota.unlimited", limit == nil),
		),
	)
	defer span.End()

	if limit != nil {
		span.SetAttributes(attribute.Int("quota.limit", *limit))
	}

	err := r.next.CreateWithinQuota(ctx, s, limit, periodStart)
	switch {
	case err == nil:
		r.started.Add(ctx, 1)
	case errors.Is(err, domain.ErrQuotaExhausted):
		r.rejected.Add(ctx, 1)
	}
	finish(span, err)
	return err
}

func (r *TracingSessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.GetByID",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	s, err := r.next.GetByID(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.String("session.status", string(s.Status)))
	}
	finish(span, err)
	return s, err
}

func (r *TracingSessionRepository) CountBillableSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.CountBillableSince",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("period.start", since.Format(time.RFC3339)),
		),
	)
	defer span.End()

	n, err := r.next.CountBillableSince(ctx, tenantID, since)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", n))
	}
	finish(span, err)
	return n, err
}

func (r *TracingSessionRepository) AppendEvent(ctx context.Context, e domain.Event) error {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.AppendEvent",
		trace.WithAttributes(
			attribute.String("session.id", e.SessionID),
			attribute.String("event.speaker", string(e.Speaker)),
		),
	)
	defer span.End()

	err := r.next.AppendEvent(ctx, e)
	finish(span, err)
	return err
}

func (r *TracingSessionRepository) ListEvents(ctx context.Context, sessionID string) ([]domain.Event, error) {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.ListEvents",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	events, err := r.next.ListEvents(ctx, sessionID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(events)))
	}
	finish(span, err)
	return events, err
}

func (r *TracingSessionRepository) AddExtension(ctx context.Context, sessionID string, minutes, limit int, at time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.AddExtension",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("extension.minutes", minutes),
		),
	)
	defer span.End()

	total, err := r.next.AddExtension(ctx, sessionID, minutes, limit, at)
	if err == nil {
		span.SetAttributes(attribute.Int("extension.total", total))
	}
	finish(span, err)
	return total, err
}

func (r *TracingSessionRepository) SetEndReason(ctx context.Context, sessionID string, reason domain.EndReason, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "SessionRepository.SetEndReason",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.end_reason", string(reason)),
		),
	)
	defer span.End()

	err := r.next.SetEndReason(ctx, sessionID, reason, at)
	finish(span, err)
	return err
}

func (r *TracingSessionRepository) Complete(ctx context.Context, sessionID string, outcome domain.Completion) error {
	attrs := []attribute.KeyValue{
		attribute.String("session.end_reason", string(outcome.Reason)),
		attribute.Bool("session.billable", outcome.Billable),
	}
	ctx, span := r.tracer.Start(ctx, "SessionRepository.Complete",
		trace.WithAttributes(append(attrs,
			attribute.String("session.id", sessionID),
			attribute.Int("session.duration_seconds", outcome.DurationSeconds),
		)...),
	)
	defer span.End()

	err := r.next.Complete(ctx, sessionID, outcome)
	if err == nil {
		r.completed.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	finish(span, err)
	return err
}
