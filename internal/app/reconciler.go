package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// ReconcilerConfig controls batch size and claim recovery.
type ReconcilerConfig struct {
	// BatchSize is the number of requests claimed per round trip.
	BatchSize int
	// ClaimTTL is how long a claim may stay unfinished before another run
	// takes it back.
	ClaimTTL time.Duration
}

// DefaultReconcilerConfig returns production defaults.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize: 100,
		ClaimTTL:  15 * time.Minute,
	}
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	defaults := DefaultReconcilerConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = defaults.ClaimTTL
	}
	return c
}

// SuspensionReconciler executes approved suspension requests whose stop time
// has passed. It is the only writer that sets a tenant's suspended flag.
type SuspensionReconciler struct {
	requests  domain.SuspensionRepository
	tenants   domain.TenantRepository
	validator domain.TransitionValidator[domain.SuspensionStatus]
	cfg       ReconcilerConfig
	opts      options
}

// NewSuspensionReconciler creates the reconciler.
func NewSuspensionReconciler(
	requests domain.SuspensionRepository,
	tenants domain.TenantRepository,
	validator domain.TransitionValidator[domain.SuspensionStatus],
	cfg ReconcilerConfig,
	opts ...Option,
) *SuspensionReconciler {
	return &SuspensionReconciler{
		requests:  requests,
		tenants:   tenants,
		validator: validator,
		cfg:       cfg.withDefaults(),
		opts:      newOptions(opts),
	}
}

// Run performs one reconciliation pass. Rows are claimed before they are
// processed, so overlapping runs never execute the same request twice. A
// failing row is released back to approved at the end of the run and the
// rest of the batch continues. Only a failing claim aborts the run.
func (r *SuspensionReconciler) Run(ctx context.Context) (domain.ReconcileReport, error) {
	runID, err := generateID()
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("generating run id: %w", err)
	}

	report := domain.ReconcileReport{RunID: runID}
	log := r.opts.logger.With("run_id", runID)
	now := r.opts.now()

	released, err := r.requests.ReleaseStaleClaims(ctx, now.Add(-r.cfg.ClaimTTL))
	if err != nil {
		log.WarnContext(ctx, "releasing stale claims", "error", err)
	}
	report.Released = released

	var failed []domain.SuspensionRequest
	defer func() {
		// Release with a fresh context so a cancelled run still hands its
		// failed rows back.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for _, req := range failed {
			if err := r.requests.ReleaseClaim(releaseCtx, req.ID, runID); err != nil {
				log.ErrorContext(ctx, "releasing claim", "request_id", req.ID, "error", err)
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		claimed, err := r.requests.ClaimDue(ctx, now, runID, r.cfg.BatchSize)
		if err != nil {
			return report, fmt.Errorf("claiming due requests: %w", err)
		}
		report.Claimed += len(claimed)

		for _, req := range claimed {
			if err := r.execute(ctx, req, runID, now); err != nil {
				report.Failed++
				failed = append(failed, req)
				log.ErrorContext(ctx, "executing suspension",
					"request_id", req.ID,
					"tenant_id", req.TenantID,
					"error", err,
				)
				continue
			}
			report.Executed++
			log.InfoContext(ctx, "tenant suspended",
				"request_id", req.ID,
				"tenant_id", req.TenantID,
				"type", req.Type,
			)
		}

		if len(claimed) < r.cfg.BatchSize {
			break
		}
	}

	log.InfoContext(ctx, "reconciliation finished",
		"released", report.Released,
		"claimed", report.Claimed,
		"executed", report.Executed,
		"failed", report.Failed,
	)
	return report, nil
}

func (r *SuspensionReconciler) execute(ctx context.Context, req domain.SuspensionRequest, runID string, now time.Time) error {
	if _, err := r.validator.Apply(ctx, req.Status, domain.ActionExecute); err != nil {
		return err
	}
	if err := r.tenants.SetSuspended(ctx, req.TenantID, true, now); err != nil {
		return fmt.Errorf("suspending tenant: %w", err)
	}
	if err := r.requests.MarkExecuted(ctx, req.ID, runID, now); err != nil {
		return fmt.Errorf("marking executed: %w", err)
	}
	return nil
}
