package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

func newGate(tenants *mockTenants, sessions *mockSessions) *app.TenantGate {
	return app.NewTenantGate(tenants, sessions, app.WithClock(fixedClock(testNow)), quiet)
}

func TestResolve_Unlimited(t *testing.T) {
	tenants, sessions := newMockTenants(), newMockSessions()
	tenant := seedTenant(tenants, "acme", nil)
	for range 50 {
		seedSession(sessions, tenant.ID, testNow, domain.SessionTerminated, true)
	}

	adm, err := newGate(tenants, sessions).Resolve(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adm.Available {
		t.Error("Available = false, want true for unlimited plan")
	}
	if adm.Tenant.ID != tenant.ID {
		t.Errorf("Tenant.ID = %q, want %q", adm.Tenant.ID, tenant.ID)
	}
}

func TestResolve_Quota(t *testing.T) {
	tests := []struct {
		name      string
		billable  int
		available bool
	}{
		{"below limit", 9, true},
		{"at limit", 10, false},
		{"over limit", 12, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenants, sessions := newMockTenants(), newMockSessions()
			tenant := seedTenant(tenants, "acme", intPtr(10))
			for range tt.billable {
				seedSession(sessions, tenant.ID, testNow.Add(-time.Hour), domain.SessionTerminated, true)
			}

			adm, err := newGate(tenants, sessions).Resolve(context.Background(), "acme")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adm.Available != tt.available {
				t.Errorf("Available = %v, want %v", adm.Available, tt.available)
			}
		})
	}
}

func TestResolve_IgnoresOtherPeriodsAndNonBillable(t *testing.T) {
	tenants, sessions := newMockTenants(), newMockSessions()
	tenant := seedTenant(tenants, "acme", intPtr(2))
	other := seedTenant(tenants, "globex", nil)

	lastMonth := time.Date(2026, time.February, 27, 0, 0, 0, 0, time.UTC)
	seedSession(sessions, tenant.ID, lastMonth, domain.SessionTerminated, true)
	seedSession(sessions, tenant.ID, lastMonth, domain.SessionTerminated, true)
	seedSession(sessions, tenant.ID, testNow, domain.SessionTerminated, false)
	seedSession(sessions, tenant.ID, testNow, domain.SessionLive, false)
	seedSession(sessions, other.ID, testNow, domain.SessionTerminated, true)
	seedSession(sessions, other.ID, testNow, domain.SessionTerminated, true)

	adm, err := newGate(tenants, sessions).Resolve(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adm.Available {
		t.Error("Available = false, want true")
	}
}

func TestResolve_BillingCycleAnchor(t *testing.T) {
	tenants, sessions := newMockTenants(), newMockSessions()
	tenant := seedTenant(tenants, "acme", intPtr(1))
	anchor := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	tenant.BillingCycleStart = &anchor
	tenants.tenants[tenant.ID] = tenant

	// The current period began on 20 February, so a session from the 25th counts.
	seedSession(sessions, tenant.ID, time.Date(2026, time.February, 25, 0, 0, 0, 0, time.UTC), domain.SessionTerminated, true)

	adm, err := newGate(tenants, sessions).Resolve(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adm.Available {
		t.Error("Available = true, want false")
	}
}

func TestResolve_Suspended(t *testing.T) {
	tenants, sessions := newMockTenants(), newMockSessions()
	tenant := seedTenant(tenants, "acme", intPtr(1))
	tenant.Suspended = true
	tenants.tenants[tenant.ID] = tenant
	seedSession(sessions, tenant.ID, testNow, domain.SessionTerminated, true)

	_, err := newGate(tenants, sessions).Resolve(context.Background(), "acme")
	if !errors.Is(err, domain.ErrTenantSuspended) {
		t.Fatalf("expected ErrTenantSuspended, got %v", err)
	}
	if domain.KindOf(err) != domain.KindForbidden {
		t.Errorf("kind = %q, want %q", domain.KindOf(err), domain.KindForbidden)
	}
}

func TestResolve_NotFound(t *testing.T) {
	tenants, sessions := newMockTenants(), newMockSessions()
	seedTenant(tenants, "acme", nil)

	for _, slug := range []string{"unknown", "", "Not A Slug", "--"} {
		t.Run(slug, func(t *testing.T) {
			_, err := newGate(tenants, sessions).Resolve(context.Background(), slug)
			if !errors.Is(err, domain.ErrTenantNotFound) {
				t.Errorf("expected ErrTenantNotFound, got %v", err)
			}
		})
	}
	if n := sessions.callCount(); n != 0 {
		t.Errorf("session store called %d times, want 0", n)
	}
}
