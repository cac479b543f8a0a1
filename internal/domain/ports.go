package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	// SetSuspended flips the suspension flag. Setting an already-set flag is not an error.
	SetSuspended(ctx context.Context, id string, suspended bool, at time.Time) error
}

// SessionRepository defines the persistence contract for sessions and their
// transcripts. Every mutation is conditional on the session still being live
// and returns ErrSessionTerminated otherwise.
type SessionRepository interface {
	// CreateWithinQuota inserts a live session unless the tenant already has
	// limit billable sessions created since periodStart, counted the same way
	// as CountBillableSince. A nil limit means unlimited. The count and the
	// insert are one atomic step.
	CreateWithinQuota(ctx context.Context, session Session, limit *int, periodStart time.Time) error
	GetByID(ctx context.Context, id string) (Session, error)
	CountBillableSince(ctx context.Context, tenantID string, since time.Time) (int, error)
	// AppendEvent stores a transcript event; candidate events increment the
	// answered counter in the same step.
	AppendEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, sessionID string) ([]Event, error)
	// AddExtension atomically adds minutes unless the total would exceed max,
	// in which case it returns ErrExtensionCapExceeded. Returns the new total.
	AddExtension(ctx context.Context, sessionID string, minutes, max int, at time.Time) (int, error)
	SetEndReason(ctx context.Context, sessionID string, reason EndReason, at time.Time) error
	Complete(ctx context.Context, sessionID string, outcome Completion) error
}

// SuspensionRepository defines the persistence contract for suspension requests.
type SuspensionRepository interface {
	// Create inserts a request. A second active request for the same tenant
	// and type yields ErrActiveSuspensionExists.
	Create(ctx context.Context, req SuspensionRequest) error
	GetByID(ctx context.Context, id string) (SuspensionRequest, error)
	// FindActive returns the newest request of type t in one of statuses.
	FindActive(ctx context.Context, tenantID string, t SuspensionType, statuses []SuspensionStatus) (SuspensionRequest, error)
	// LatestWithStatus returns the newest request of the tenant in status.
	LatestWithStatus(ctx context.Context, tenantID string, status SuspensionStatus) (SuspensionRequest, error)
	ListByTenant(ctx context.Context, tenantID string) ([]SuspensionRequest, error)
	// Transition persists req if the stored status still equals from.
	// Otherwise it returns ErrStaleState.
	Transition(ctx context.Context, from SuspensionStatus, req SuspensionRequest) error

	// ClaimDue moves up to limit approved requests whose stop time has passed
	// to executing, stamped with claimID, and returns them.
	ClaimDue(ctx context.Context, now time.Time, claimID string, limit int) ([]SuspensionRequest, error)
	// MarkExecuted finishes a request claimed by claimID.
	MarkExecuted(ctx context.Context, id, claimID string, at time.Time) error
	// ReleaseClaim returns a request claimed by claimID to approved.
	ReleaseClaim(ctx context.Context, id, claimID string) error
	// ReleaseStaleClaims returns claims taken before olderThan to approved.
	ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error)
}

// TransitionValidator checks an action against a transition table and
// returns the destination state, or a *TransitionError.
type TransitionValidator[S ~string] interface {
	Apply(ctx context.Context, current S, action Action) (S, error)
}

// Notification topics.
const (
	TopicSessionCompleted = "session.completed"
)

// Notification is a fact emitted for asynchronous follow-up work.
type Notification struct {
	Topic     string
	TenantID  string
	SessionID string
	Billable  bool
}

// EventPublisher defines the contract for emitting notifications.
type EventPublisher interface {
	Publish(ctx context.Context, n Notification) error
}
