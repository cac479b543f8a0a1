package domain

import "time"

// SuspensionType distinguishes deferred from emergency suspension.
type SuspensionType string

const (
	SuspensionNormal    SuspensionType = "normal"
	SuspensionEmergency SuspensionType = "emergency"
)

// SuspensionStatus is the lifecycle state of a suspension request.
type SuspensionStatus string

const (
	SuspensionPending         SuspensionStatus = "pending"
	SuspensionPendingApproval SuspensionStatus = "pending_approval"
	SuspensionApproved        SuspensionStatus = "approved"
	SuspensionRejected        SuspensionStatus = "rejected"
	SuspensionCancelled       SuspensionStatus = "cancelled"
	SuspensionExecuting       SuspensionStatus = "executing"
	SuspensionExecuted        SuspensionStatus = "executed"
)

// SuspensionTransitions defines every legal suspension request state change.
var SuspensionTransitions = []Transition[SuspensionStatus]{
	{Action: ActionApprove, Src: SuspensionPending, Dst: SuspensionApproved},
	{Action: ActionApprove, Src: SuspensionPendingApproval, Dst: SuspensionApproved},
	{Action: ActionReject, Src: SuspensionPending, Dst: SuspensionRejected},
	{Action: ActionReject, Src: SuspensionPendingApproval, Dst: SuspensionRejected},
	{Action: ActionCancel, Src: SuspensionPending, Dst: SuspensionCancelled},
	{Action: ActionClaim, Src: SuspensionApproved, Dst: SuspensionExecuting},
	{Action: ActionExecute, Src: SuspensionExecuting, Dst: SuspensionExecuted},
	{Action: ActionRelease, Src: SuspensionExecuting, Dst: SuspensionApproved},
}

// InitialSuspensionStatus is the status a new request of type t starts in.
func InitialSuspensionStatus(t SuspensionType) SuspensionStatus {
	if t == SuspensionEmergency {
		return SuspensionPendingApproval
	}
	return SuspensionPending
}

// BlockingStatuses are the statuses that prevent another request of the same
// type for the same tenant.
func BlockingStatuses(t SuspensionType) []SuspensionStatus {
	if t == SuspensionEmergency {
		return []SuspensionStatus{SuspensionPending, SuspensionPendingApproval}
	}
	return []SuspensionStatus{SuspensionPending}
}

// SuspensionRequest asks for a tenant to stop admitting sessions.
type SuspensionRequest struct {
	ID              string
	TenantID        string
	Type            SuspensionType
	Status          SuspensionStatus
	RequestedBy     string
	RequestedAt     time.Time
	ScheduledStopAt *time.Time
	CancelledAt     *time.Time
	ExecutedAt      *time.Time
	ClaimedBy       string
	ClaimedAt       *time.Time
}

// NewSuspensionRequest creates a request in the initial status for its type.
// Normal requests are scheduled one month after they are made.
func NewSuspensionRequest(id, tenantID string, t SuspensionType, requestedBy string, now time.Time) SuspensionRequest {
	now = now.UTC()
	req := SuspensionRequest{
		ID:          id,
		TenantID:    tenantID,
		Type:        t,
		Status:      InitialSuspensionStatus(t),
		RequestedBy: requestedBy,
		RequestedAt: now,
	}
	if t == SuspensionNormal {
		stop := now.AddDate(0, 1, 0)
		req.ScheduledStopAt = &stop
	}
	return req
}

// ReconcileReport summarizes one reconciler run.
type ReconcileReport struct {
	RunID    string
	Released int
	Claimed  int
	Executed int
	Failed   int
}
