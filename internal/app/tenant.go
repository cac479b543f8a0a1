package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/sessiongate/internal/domain"
	"github.com/neomorfeo/sessiongate/internal/validate"
)

// TenantService seeds and reads tenant records for operators.
// Full tenant management lives in the onboarding product.
type TenantService struct {
	repo domain.TenantRepository
	opts options
}

// NewTenantService creates a service with the given repository.
func NewTenantService(repo domain.TenantRepository, opts ...Option) *TenantService {
	return &TenantService{repo: repo, opts: newOptions(opts)}
}

// CreateTenantInput describes a tenant to seed.
type CreateTenantInput struct {
	Name    string
	Slug    string
	LogoRef string
	Plan    domain.Plan
	// PlanLimit is the monthly billable session cap; nil means unlimited.
	PlanLimit *int
	// BillingCycleStart is an optional YYYY-MM-DD anchor date.
	BillingCycleStart string
}

// Create validates and persists a new tenant.
func (s *TenantService) Create(ctx context.Context, in CreateTenantInput) (domain.Tenant, error) {
	if err := validate.Text("name", in.Name, 255); err != nil {
		return domain.Tenant{}, err
	}
	if err := validate.Slug("slug", in.Slug); err != nil {
		return domain.Tenant{}, err
	}
	if err := validate.OneOf("plan", in.Plan, domain.Plans); err != nil {
		return domain.Tenant{}, err
	}
	if in.PlanLimit != nil && *in.PlanLimit <= 0 {
		return domain.Tenant{}, &domain.ValidationError{Field: "planLimit", Reason: "must be positive"}
	}

	var anchor *time.Time
	if in.BillingCycleStart != "" {
		if err := validate.Date("billingCycleStart", in.BillingCycleStart); err != nil {
			return domain.Tenant{}, err
		}
		d, _ := time.Parse(validate.DateLayout, in.BillingCycleStart)
		anchor = &d
	}

	// Check slug uniqueness before creating; the store's unique index is the
	// final guard.
	if _, err := s.repo.GetBySlug(ctx, in.Slug); err == nil {
		return domain.Tenant{}, &domain.SlugConflictError{Slug: in.Slug}
	}

	id, err := generateID()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generating tenant id: %w", err)
	}

	tenant := domain.NewTenant(id, in.Name, in.Slug, in.Plan, in.PlanLimit)
	tenant.LogoRef = in.LogoRef
	tenant.BillingCycleStart = anchor
	tenant.CreatedAt = s.opts.now()
	tenant.UpdatedAt = tenant.CreatedAt

	if err := s.repo.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}

	s.opts.logger.InfoContext(ctx, "tenant created",
		"tenant_id", tenant.ID,
		"tenant_slug", tenant.Slug,
		"plan", tenant.Plan,
	)
	return tenant, nil
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	if err := validate.ID("tenantId", id); err != nil {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return s.repo.GetByID(ctx, id)
}
