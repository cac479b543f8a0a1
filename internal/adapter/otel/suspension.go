package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// TracingSuspensionRepository wraps a domain.SuspensionRepository with spans
// and reconciler counters.
type TracingSuspensionRepository struct {
	next   domain.SuspensionRepository
	tracer trace.Tracer

	requested metric.Int64Counter
	claimed   metric.Int64Counter
	executed  metric.Int64Counter
}

// Compile-time check: TracingSuspensionRepository implements domain.SuspensionRepository.
var _ domain.SuspensionRepository = (*TracingSuspensionRepository)(nil)

// NewTracingSuspensionRepository creates a tracing decorator around the given repository.
func NewTracingSuspensionRepository(next domain.SuspensionRepository) *TracingSuspensionRepository {
	meter := otel.Meter(instrumentationName)
	return &TracingSuspensionRepository{
		next:      next,
		tracer:    otel.Tracer(instrumentationName),
		requested: counter(meter, "sessiongate.suspensions.requested", "Suspension requests recorded, by type."),
		claimed:   counter(meter, "sessiongate.suspensions.claimed", "Due suspension requests claimed by the reconciler."),
		executed:  counter(meter, "sessiongate.suspensions.executed", "Suspension requests executed."),
	}
}

func requestAttributes(req domain.SuspensionRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("suspension.id", req.ID),
		attribute.String("tenant.id", req.TenantID),
		attribute.String("suspension.type", string(req.Type)),
		attribute.String("suspension.status", string(req.Status)),
	}
}

func (r *TracingSuspensionRepository) Create(ctx context.Context, req domain.SuspensionRequest) error {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.Create",
		trace.WithAttributes(requestAttributes(req)...),
	)
	defer span.End()

	err := r.next.Create(ctx, req)
	if err == nil {
		r.requested.Add(ctx, 1, metric.WithAttributes(attribute.String("suspension.type", string(req.Type))))
	}
	finish(span, err)
	return err
}

func (r *TracingSuspensionRepository) GetByID(ctx context.Context, id string) (domain.SuspensionRequest, error) {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.GetByID",
		trace.WithAttributes(attribute.String("suspension.id", id)),
	)
	defer span.End()

	req, err := r.next.GetByID(ctx, id)
	finish(span, err)
	return req, err
}

func (r *TracingSuspensionRepository) FindActive(
	ctx context.Context,
	tenantID string,
	t domain.SuspensionType,
	statuses []domain.SuspensionStatus,
) (domain.SuspensionRequest, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.FindActive",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("suspension.type", string(t)),
			attribute.StringSlice("filter.statuses", names),
		),
	)
	defer span.End()

	req, err := r.next.FindActive(ctx, tenantID, t, statuses)
	finish(span, err)
	return req, err
}

func (r *TracingSuspensionRepository) LatestWithStatus(ctx context.Context, tenantID string, status domain.SuspensionStatus) (domain.SuspensionRequest, error) {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.LatestWithStatus",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("filter.status", string(status)),
		),
	)
	defer span.End()

	req, err := r.next.LatestWithStatus(ctx, tenantID, status)
	finish(span, err)
	return req, err
}

func (r *TracingSuspensionRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.SuspensionRequest, error) {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.ListByTenant",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	reqs, err := r.next.ListByTenant(ctx, tenantID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reqs)))
	}
	finish(span, err)
	return reqs, err
}

func (r *TracingSuspensionRepository) Transition(ctx context.Context, from domain.SuspensionStatus, req domain.SuspensionRequest) error {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.Transition",
		trace.WithAttributes(append(requestAttributes(req),
			attribute.String("suspension.from_status", string(from)),
		)...),
	)
	defer span.End()

	err := r.next.Transition(ctx, from, req)
	finish(span, err)
	return err
}

func (r *TracingSuspensionRepository) ClaimDue(ctx context.Context, now time.Time, claimID string, limit int) ([]domain.SuspensionRequest, error) {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.ClaimDue",
		trace.WithAttributes(
			attribute.String("claim.id", claimID),
			attribute.Int("claim.limit", limit),
		),
	)
	defer span.End()

	reqs, err := r.next.ClaimDue(ctx, now, claimID, limit)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reqs)))
		r.claimed.Add(ctx, int64(len(reqs)))
	}
	finish(span, err)
	return reqs, err
}

func (r *TracingSuspensionRepository) MarkExecuted(ctx context.Context, id, claimID string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.MarkExecuted",
		trace.WithAttributes(
			attribute.String("suspension.id", id),
			attribute.String("claim.id", claimID),
		),
	)
	defer span.End()

	err := r.next.MarkExecuted(ctx, id, claimID, at)
	if err == nil {
		r.executed.Add(ctx, 1)
	}
	finish(span, err)
	return err
}

func (r *TracingSuspensionRepository) ReleaseClaim(ctx context.Context, id, claimID string) error {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.ReleaseClaim",
		trace.WithAttributes(
			attribute.String("suspension.id", id),
			attribute.String("claim.id", claimID),
		),
	)
	defer span.End()

	err := r.next.ReleaseClaim(ctx, id, claimID)
	finish(span, err)
	return err
}

func (r *TracingSuspensionRepository) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "SuspensionRepository.ReleaseStaleClaims",
		trace.WithAttributes(attribute.String("claim.older_than", olderThan.Format(time.RFC3339))),
	)
	defer span.End()

	n, err := r.next.ReleaseStaleClaims(ctx, olderThan)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", n))
	}
	finish(span, err)
	return n, err
}
