package domain

import "time"

// Plan is the subscription tier of a tenant.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
	PlanCustom     Plan = "custom"
)

// Plans lists every known plan.
var Plans = []Plan{PlanFree, PlanStarter, PlanBusiness, PlanEnterprise, PlanCustom}

// Tenant is a customer organization. Sessions are admitted per tenant.
type Tenant struct {
	ID      string
	Name    string
	Slug    string
	LogoRef string
	Plan    Plan
	// PlanLimit caps billable sessions per billing period. Nil means unlimited.
	PlanLimit *int
	Suspended bool
	// BillingCycleStart anchors the tenant's billing period. Nil falls back
	// to calendar months.
	BillingCycleStart *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewTenant creates an active, unsuspended tenant.
func NewTenant(id, name, slug string, plan Plan, limit *int) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Plan:      plan,
		PlanLimit: limit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BillingPeriodStart returns the start of the billing period containing now.
// Without an anchor the period is the calendar month in UTC. With an anchor
// the period starts on the anchor's day of month, clamped to the last day of
// shorter months.
func BillingPeriodStart(now time.Time, anchor *time.Time) time.Time {
	now = now.UTC()
	if anchor == nil {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	day := anchor.UTC().Day()
	start := anchorInMonth(now.Year(), now.Month(), day)
	if start.After(now) {
		prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		start = anchorInMonth(prev.Year(), prev.Month(), day)
	}
	return start
}

func anchorInMonth(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
