package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

// TenantResponse is the operator view of a tenant.
type TenantResponse struct {
	ID                string `json:"id" doc:"Unique identifier"`
	Name              string `json:"name" doc:"Display name"`
	Slug              string `json:"slug" doc:"Public identifier"`
	LogoRef           string `json:"logoRef"`
	Plan              string `json:"plan" doc:"Subscription plan"`
	PlanLimit         *int   `json:"planLimit,omitempty" doc:"Billable sessions per billing period; absent means unlimited"`
	Suspended         bool   `json:"suspended"`
	BillingCycleStart string `json:"billingCycleStart,omitempty" doc:"Billing period anchor (YYYY-MM-DD)"`
	CreatedAt         string `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt         string `json:"updatedAt" doc:"Last update timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	resp := TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		LogoRef:   t.LogoRef,
		Plan:      string(t.Plan),
		PlanLimit: t.PlanLimit,
		Suspended: t.Suspended,
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
	if t.BillingCycleStart != nil {
		resp.BillingCycleStart = t.BillingCycleStart.UTC().Format(time.DateOnly)
	}
	return resp
}

// --- Tenants ---

type CreateTenantInput struct {
	Body struct {
		Name              string `json:"name" doc:"Display name"`
		Slug              string `json:"slug" doc:"Public identifier (lowercase, hyphens)"`
		LogoRef           string `json:"logoRef,omitempty" doc:"Logo reference"`
		Plan              string `json:"plan,omitempty" default:"free" doc:"Subscription plan"`
		PlanLimit         *int   `json:"planLimit,omitempty" doc:"Billable sessions per billing period"`
		BillingCycleStart string `json:"billingCycleStart,omitempty" doc:"Billing period anchor (YYYY-MM-DD)"`
	}
}

type TenantOutput struct {
	Body TenantResponse
}

// --- Suspension approval ---

type ApproveInput struct {
	RequestID string `path:"requestId" doc:"Suspension request ID"`
	StopAt    string `query:"stopAt" required:"false" doc:"Override the stop time (RFC 3339)"`
}

type RequestIDInput struct {
	RequestID string `path:"requestId" doc:"Suspension request ID"`
}

// --- Reconcile ---

type ReconcileOutput struct {
	Body struct {
		RunID    string `json:"runId"`
		Released int    `json:"released" doc:"Stale claims returned to approved"`
		Claimed  int    `json:"claimed"`
		Executed int    `json:"executed"`
		Failed   int    `json:"failed"`
	}
}

func registerAdminRoutes(api huma.API, svc Services, mw huma.Middlewares) {
	security := []map[string][]string{{operatorScheme: {}}}

	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/tenants",
		Summary:       "Seed a tenant",
		Tags:          []string{"Admin"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   mw,
	}, func(ctx context.Context, input *CreateTenantInput) (*TenantOutput, error) {
		tenant, err := svc.Tenants.Create(ctx, app.CreateTenantInput{
			Name:              input.Body.Name,
			Slug:              input.Body.Slug,
			LogoRef:           input.Body.LogoRef,
			Plan:              domain.Plan(input.Body.Plan),
			PlanLimit:         input.Body.PlanLimit,
			BillingCycleStart: input.Body.BillingCycleStart,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/tenants/{tenantId}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Admin"},
		Security:    security,
		Middlewares: mw,
	}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
		tenant, err := svc.Tenants.GetByID(ctx, input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-suspension",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/suspension-requests/{requestId}/approve",
		Summary:     "Approve a suspension request",
		Tags:        []string{"Admin"},
		Security:    security,
		Middlewares: mw,
	}, func(ctx context.Context, input *ApproveInput) (*SuspensionOutput, error) {
		var stopAt *time.Time
		if input.StopAt != "" {
			t, err := time.Parse(time.RFC3339, input.StopAt)
			if err != nil {
				return nil, toHumaError(&domain.ValidationError{Field: "stopAt", Reason: "must be an RFC 3339 timestamp"})
			}
			stopAt = &t
		}

		req, err := svc.Suspensions.Approve(ctx, input.RequestID, stopAt)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SuspensionOutput{Body: toSuspensionResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-suspension",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/suspension-requests/{requestId}/reject",
		Summary:     "Reject a suspension request",
		Tags:        []string{"Admin"},
		Security:    security,
		Middlewares: mw,
	}, func(ctx context.Context, input *RequestIDInput) (*SuspensionOutput, error) {
		req, err := svc.Suspensions.Reject(ctx, input.RequestID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SuspensionOutput{Body: toSuspensionResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-reconciler",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reconcile",
		Summary:     "Execute due suspension requests now",
		Tags:        []string{"Admin"},
		Security:    security,
		Middlewares: mw,
	}, func(ctx context.Context, _ *struct{}) (*ReconcileOutput, error) {
		report, err := svc.Reconciler.Run(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ReconcileOutput{}
		out.Body.RunID = report.RunID
		out.Body.Released = report.Released
		out.Body.Claimed = report.Claimed
		out.Body.Executed = report.Executed
		out.Body.Failed = report.Failed
		return out, nil
	})
}
