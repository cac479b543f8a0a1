package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/sessiongate/internal/domain"
	"github.com/neomorfeo/sessiongate/internal/validate"
)

// Admission is the outcome of resolving a public tenant slug.
type Admission struct {
	Tenant domain.Tenant
	// Available is false once the tenant used up its billable sessions for
	// the current billing period. It is advisory; the caller decides.
	Available bool
}

// TenantGate decides whether a tenant may start new sessions.
type TenantGate struct {
	tenants  domain.TenantRepository
	sessions domain.SessionRepository
	opts     options
}

// NewTenantGate creates a gate reading tenants and session usage.
func NewTenantGate(tenants domain.TenantRepository, sessions domain.SessionRepository, opts ...Option) *TenantGate {
	return &TenantGate{tenants: tenants, sessions: sessions, opts: newOptions(opts)}
}

// Resolve looks up a tenant by public slug and applies the suspension and
// quota rules. Unknown or malformed slugs both yield ErrTenantNotFound.
// Suspended tenants yield ErrTenantSuspended regardless of quota.
func (g *TenantGate) Resolve(ctx context.Context, slug string) (Admission, error) {
	if err := validate.Slug("slug", slug); err != nil {
		return Admission{}, domain.ErrTenantNotFound
	}

	tenant, err := g.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return Admission{}, err
	}

	if tenant.Suspended {
		return Admission{}, domain.ErrTenantSuspended
	}

	adm := Admission{Tenant: tenant, Available: true}
	if tenant.PlanLimit == nil {
		return adm, nil
	}

	since := domain.BillingPeriodStart(g.opts.now(), tenant.BillingCycleStart)
	used, err := g.sessions.CountBillableSince(ctx, tenant.ID, since)
	if err != nil {
		return Admission{}, fmt.Errorf("counting billable sessions: %w", err)
	}

	adm.Available = used < *tenant.PlanLimit
	if !adm.Available {
		g.opts.logger.InfoContext(ctx, "tenant quota exhausted",
			"tenant_id", tenant.ID,
			"used", used,
			"limit", *tenant.PlanLimit,
		)
	}
	return adm, nil
}
