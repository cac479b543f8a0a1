package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

const instrumentationName = "github.com/neomorfeo/sessiongate/internal/adapter/otel"

// finish records err on span, if any.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", string(domain.KindOf(err))))
	}
}

// TracingTenantRepository wraps a domain.TenantRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingTenantRepository struct {
	next   domain.TenantRepository
	tracer trace.Tracer
}

// Compile-time check: TracingTenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TracingTenantRepository)(nil)

// NewTracingTenantRepository creates a tracing decorator around the given repository.
func NewTracingTenantRepository(next domain.TenantRepository) *TracingTenantRepository {
	return &TracingTenantRepository{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (r *TracingTenantRepository) Create(ctx context.Context, tenant domain.Tenant) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.slug", tenant.Slug),
			attribute.String("tenant.plan", string(tenant.Plan)),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, tenant)
	finish(span, err)
	return err
}

func (r *TracingTenantRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetByID",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	tenant, err := r.next.GetByID(ctx, id)
	finish(span, err)
	return tenant, err
}

func (r *TracingTenantRepository) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetBySlug",
		trace.WithAttributes(attribute.String("tenant.slug", slug)),
	)
	defer span.End()

	tenant, err := r.next.GetBySlug(ctx, slug)
	if err == nil {
		span.SetAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.Bool("tenant.suspended", tenant.Suspended),
		)
	}
	finish(span, err)
	return tenant, err
}

func (r *TracingTenantRepository) SetSuspended(ctx context.Context, id string, suspended bool, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.SetSuspended",
		trace.WithAttributes(
			attribute.String("tenant.id", id),
			attribute.Bool("tenant.suspended", suspended),
		),
	)
	defer span.End()

	err := r.next.SetSuspended(ctx, id, suspended, at)
	finish(span, err)
	return err
}
