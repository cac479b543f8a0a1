// Package http exposes the session admission API over huma.
package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

// Reconciler runs one suspension reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (domain.ReconcileReport, error)
}

// Services are the use cases served over HTTP.
type Services struct {
	Tenants     *app.TenantService
	Gate        *app.TenantGate
	Sessions    *app.SessionLifecycle
	Suspensions *app.SuspensionWorkflow
	Reconciler  Reconciler
	// OperatorSecret guards the admin routes. Empty locks them.
	OperatorSecret string
}

const operatorScheme = "operator"

// Register adds every API route to the Huma API.
func Register(api huma.API, svc Services) {
	registerSecurityScheme(api)

	registerSessionRoutes(api, svc)
	registerSuspensionRoutes(api, svc.Suspensions)
	registerAdminRoutes(api, svc, huma.Middlewares{operatorAuth(api, svc.OperatorSecret)})
}

func registerSecurityScheme(api huma.API) {
	components := api.OpenAPI().Components
	if components == nil {
		return
	}
	if components.SecuritySchemes == nil {
		components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	components.SecuritySchemes[operatorScheme] = &huma.SecurityScheme{
		Type:   "http",
		Scheme: "bearer",
	}
}

// operatorAuth rejects requests without the operator bearer token.
func operatorAuth(api huma.API, secret string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
			return
		}
		next(ctx)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
