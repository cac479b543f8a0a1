package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

// SuspensionResponse is the API representation of a suspension request.
type SuspensionResponse struct {
	ID              string `json:"id" doc:"Unique identifier"`
	TenantID        string `json:"tenantId"`
	Type            string `json:"type" doc:"normal or emergency"`
	Status          string `json:"status" doc:"Lifecycle state"`
	RequestedBy     string `json:"requestedBy"`
	RequestedAt     string `json:"requestedAt" doc:"Request timestamp (ISO 8601)"`
	ScheduledStopAt string `json:"scheduledStopAt,omitempty" doc:"When the tenant stops admitting sessions"`
	CancelledAt     string `json:"cancelledAt,omitempty"`
	ExecutedAt      string `json:"executedAt,omitempty"`
}

func toSuspensionResponse(r domain.SuspensionRequest) SuspensionResponse {
	return SuspensionResponse{
		ID:              r.ID,
		TenantID:        r.TenantID,
		Type:            string(r.Type),
		Status:          string(r.Status),
		RequestedBy:     r.RequestedBy,
		RequestedAt:     formatTime(r.RequestedAt),
		ScheduledStopAt: formatOptionalTime(r.ScheduledStopAt),
		CancelledAt:     formatOptionalTime(r.CancelledAt),
		ExecutedAt:      formatOptionalTime(r.ExecutedAt),
	}
}

type TenantIDInput struct {
	TenantID string `path:"tenantId" doc:"Tenant ID"`
}

type RequestSuspensionInput struct {
	TenantID string `path:"tenantId" doc:"Tenant ID"`
	Body     struct {
		RequestedBy string `json:"requestedBy" doc:"Who asked for the suspension"`
	}
}

type SuspensionOutput struct {
	Body SuspensionResponse
}

type SuspensionListOutput struct {
	Body []SuspensionResponse
}

func registerSuspensionRoutes(api huma.API, svc *app.SuspensionWorkflow) {
	huma.Register(api, huma.Operation{
		OperationID:   "request-suspension",
		Method:        http.MethodPost,
		Path:          "/api/v1/tenants/{tenantId}/suspension-requests",
		Summary:       "Request a suspension one month from now",
		Tags:          []string{"Suspensions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RequestSuspensionInput) (*SuspensionOutput, error) {
		req, err := svc.RequestNormal(ctx, input.TenantID, input.Body.RequestedBy)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SuspensionOutput{Body: toSuspensionResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "request-emergency-suspension",
		Method:        http.MethodPost,
		Path:          "/api/v1/tenants/{tenantId}/suspension-requests/emergency",
		Summary:       "Request an immediate suspension pending approval",
		Tags:          []string{"Suspensions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RequestSuspensionInput) (*SuspensionOutput, error) {
		req, err := svc.RequestEmergency(ctx, input.TenantID, input.Body.RequestedBy)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SuspensionOutput{Body: toSuspensionResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-suspension",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantId}/suspension-requests/cancel",
		Summary:     "Cancel the pending suspension request",
		Tags:        []string{"Suspensions"},
	}, func(ctx context.Context, input *TenantIDInput) (*SuspensionOutput, error) {
		req, err := svc.Cancel(ctx, input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SuspensionOutput{Body: toSuspensionResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-suspensions",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenantId}/suspension-requests",
		Summary:     "List suspension requests, newest first",
		Tags:        []string{"Suspensions"},
	}, func(ctx context.Context, input *TenantIDInput) (*SuspensionListOutput, error) {
		reqs, err := svc.List(ctx, input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]SuspensionResponse, len(reqs))
		for i, r := range reqs {
			resp[i] = toSuspensionResponse(r)
		}
		return &SuspensionListOutput{Body: resp}, nil
	})
}
