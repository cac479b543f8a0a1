package river

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// NotificationWorker processes notification jobs from the River queue.
// Report and feedback generation live in other services; this worker is the
// hand-off point and records what was handed off.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]
	logger *slog.Logger
}

// Work processes a single notification job.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	w.logger.InfoContext(ctx, "processing notification",
		"topic", job.Args.Topic,
		"tenant_id", job.Args.TenantID,
		"session_id", job.Args.SessionID,
		"billable", job.Args.Billable,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// Reconciler runs one suspension reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (domain.ReconcileReport, error)
}

// ReconcileJobArgs triggers a reconciliation pass. It carries no data; the
// pass reads everything it needs from the store.
type ReconcileJobArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (ReconcileJobArgs) Kind() string { return "suspension.reconcile" }

// ReconcileWorker executes matured suspension requests on a schedule.
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileJobArgs]
	reconciler Reconciler
	logger     *slog.Logger
}

// NewReconcileWorker creates a worker running r. A nil logger means slog.Default.
func NewReconcileWorker(r Reconciler, logger *slog.Logger) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileWorker{reconciler: r, logger: logger}
}

// Timeout bounds a single pass.
func (w *ReconcileWorker) Timeout(*river.Job[ReconcileJobArgs]) time.Duration {
	return 5 * time.Minute
}

// Work runs one reconciliation pass. A failed claim is returned so River
// retries the job; per-request failures are already handled by the pass.
func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileJobArgs]) error {
	report, err := w.reconciler.Run(ctx)
	if err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "reconcile job finished",
		"job_id", job.ID,
		"run_id", report.RunID,
		"executed", report.Executed,
	)
	return nil
}
