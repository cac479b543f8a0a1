package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/sessiongate/internal/domain"
	"github.com/neomorfeo/sessiongate/internal/validate"
)

const maxRequestedByLength = 255

// SuspensionWorkflow handles tenant self-service suspension requests and the
// operator approval step. It never touches the tenant's suspended flag; the
// reconciler does that once a request matures.
type SuspensionWorkflow struct {
	requests  domain.SuspensionRepository
	tenants   domain.TenantRepository
	validator domain.TransitionValidator[domain.SuspensionStatus]
	opts      options
}

// NewSuspensionWorkflow creates the suspension request service.
func NewSuspensionWorkflow(
	requests domain.SuspensionRepository,
	tenants domain.TenantRepository,
	validator domain.TransitionValidator[domain.SuspensionStatus],
	opts ...Option,
) *SuspensionWorkflow {
	return &SuspensionWorkflow{
		requests:  requests,
		tenants:   tenants,
		validator: validator,
		opts:      newOptions(opts),
	}
}

// RequestNormal schedules the tenant's suspension one month from now.
func (w *SuspensionWorkflow) RequestNormal(ctx context.Context, tenantID, requestedBy string) (domain.SuspensionRequest, error) {
	return w.request(ctx, tenantID, requestedBy, domain.SuspensionNormal)
}

// RequestEmergency asks for an immediate suspension pending operator approval.
func (w *SuspensionWorkflow) RequestEmergency(ctx context.Context, tenantID, requestedBy string) (domain.SuspensionRequest, error) {
	return w.request(ctx, tenantID, requestedBy, domain.SuspensionEmergency)
}

func (w *SuspensionWorkflow) request(ctx context.Context, tenantID, requestedBy string, t domain.SuspensionType) (domain.SuspensionRequest, error) {
	if err := validate.ID("tenantId", tenantID); err != nil {
		return domain.SuspensionRequest{}, err
	}
	if err := validate.Text("requestedBy", requestedBy, maxRequestedByLength); err != nil {
		return domain.SuspensionRequest{}, err
	}

	if _, err := w.tenants.GetByID(ctx, tenantID); err != nil {
		return domain.SuspensionRequest{}, err
	}

	// Friendly pre-check. The store's partial unique index still rejects a
	// concurrent duplicate that slips past it.
	_, err := w.requests.FindActive(ctx, tenantID, t, domain.BlockingStatuses(t))
	switch {
	case err == nil:
		return domain.SuspensionRequest{}, domain.ErrActiveSuspensionExists
	case !errors.Is(err, domain.ErrSuspensionNotFound):
		return domain.SuspensionRequest{}, fmt.Errorf("checking active requests: %w", err)
	}

	id, err := generateID()
	if err != nil {
		return domain.SuspensionRequest{}, fmt.Errorf("generating request id: %w", err)
	}

	req := domain.NewSuspensionRequest(id, tenantID, t, requestedBy, w.opts.now())
	if err := w.requests.Create(ctx, req); err != nil {
		return domain.SuspensionRequest{}, storeErr("creating suspension request", err)
	}

	w.opts.logger.InfoContext(ctx, "suspension requested",
		"request_id", req.ID,
		"tenant_id", tenantID,
		"type", t,
		"status", req.Status,
	)
	return req, nil
}

// Cancel withdraws the tenant's most recent pending request.
func (w *SuspensionWorkflow) Cancel(ctx context.Context, tenantID string) (domain.SuspensionRequest, error) {
	if err := validate.ID("tenantId", tenantID); err != nil {
		return domain.SuspensionRequest{}, err
	}

	req, err := w.requests.LatestWithStatus(ctx, tenantID, domain.SuspensionPending)
	if err != nil {
		return domain.SuspensionRequest{}, err
	}

	now := w.opts.now()
	req, err = w.transition(ctx, req, domain.ActionCancel, func(r *domain.SuspensionRequest) {
		r.CancelledAt = &now
	})
	if err != nil {
		return domain.SuspensionRequest{}, err
	}

	w.opts.logger.InfoContext(ctx, "suspension cancelled",
		"request_id", req.ID,
		"tenant_id", tenantID,
	)
	return req, nil
}

// Approve accepts a pending request. Emergency requests stop at stopAt, or
// immediately when stopAt is nil. Normal requests keep their schedule unless
// stopAt overrides it.
func (w *SuspensionWorkflow) Approve(ctx context.Context, requestID string, stopAt *time.Time) (domain.SuspensionRequest, error) {
	req, err := w.load(ctx, requestID)
	if err != nil {
		return domain.SuspensionRequest{}, err
	}

	now := w.opts.now()
	req, err = w.transition(ctx, req, domain.ActionApprove, func(r *domain.SuspensionRequest) {
		switch {
		case stopAt != nil:
			at := stopAt.UTC()
			r.ScheduledStopAt = &at
		case r.ScheduledStopAt == nil:
			r.ScheduledStopAt = &now
		}
	})
	if err != nil {
		return domain.SuspensionRequest{}, err
	}

	w.opts.logger.InfoContext(ctx, "suspension approved",
		"request_id", req.ID,
		"tenant_id", req.TenantID,
		"scheduled_stop_at", req.ScheduledStopAt,
	)
	return req, nil
}

// Reject declines a pending request.
func (w *SuspensionWorkflow) Reject(ctx context.Context, requestID string) (domain.SuspensionRequest, error) {
	req, err := w.load(ctx, requestID)
	if err != nil {
		return domain.SuspensionRequest{}, err
	}
	return w.transition(ctx, req, domain.ActionReject, nil)
}

// List returns the tenant's requests, newest first.
func (w *SuspensionWorkflow) List(ctx context.Context, tenantID string) ([]domain.SuspensionRequest, error) {
	if err := validate.ID("tenantId", tenantID); err != nil {
		return nil, err
	}
	return w.requests.ListByTenant(ctx, tenantID)
}

func (w *SuspensionWorkflow) load(ctx context.Context, requestID string) (domain.SuspensionRequest, error) {
	if err := validate.ID("requestId", requestID); err != nil {
		return domain.SuspensionRequest{}, err
	}
	return w.requests.GetByID(ctx, requestID)
}

// transition validates action, applies mutate and persists the result as a
// compare-and-swap on the previous status.
func (w *SuspensionWorkflow) transition(
	ctx context.Context,
	req domain.SuspensionRequest,
	action domain.Action,
	mutate func(*domain.SuspensionRequest),
) (domain.SuspensionRequest, error) {
	dst, err := w.validator.Apply(ctx, req.Status, action)
	if err != nil {
		return domain.SuspensionRequest{}, err
	}

	from := req.Status
	req.Status = dst
	if mutate != nil {
		mutate(&req)
	}

	if err := w.requests.Transition(ctx, from, req); err != nil {
		return domain.SuspensionRequest{}, storeErr("updating suspension request", err)
	}
	return req, nil
}
