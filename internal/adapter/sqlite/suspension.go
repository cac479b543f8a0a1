package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// SuspensionRepository implements domain.SuspensionRepository using SQLite.
type SuspensionRepository struct {
	db *sql.DB
}

const suspensionColumns = `id, tenant_id, type, status, requested_by, requested_at,
	scheduled_stop_at, cancelled_at, executed_at, claimed_by, claimed_at`

func (r *SuspensionRepository) Create(ctx context.Context, req domain.SuspensionRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO suspension_requests (`+suspensionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.TenantID, string(req.Type), string(req.Status), req.RequestedBy,
		formatTime(req.RequestedAt),
		nullTime(req.ScheduledStopAt),
		nullTime(req.CancelledAt),
		nullTime(req.ExecutedAt),
		nullString(req.ClaimedBy),
		nullTime(req.ClaimedAt),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrActiveSuspensionExists
		case isForeignKeyViolation(err):
			return domain.ErrTenantNotFound
		}
		return fmt.Errorf("inserting suspension request: %w", err)
	}
	return nil
}

func (r *SuspensionRepository) GetByID(ctx context.Context, id string) (domain.SuspensionRequest, error) {
	return scanSuspension(r.db.QueryRowContext(ctx,
		`SELECT `+suspensionColumns+` FROM suspension_requests WHERE id = ?`, id,
	))
}

func (r *SuspensionRepository) FindActive(
	ctx context.Context,
	tenantID string,
	t domain.SuspensionType,
	statuses []domain.SuspensionStatus,
) (domain.SuspensionRequest, error) {
	if len(statuses) == 0 {
		return domain.SuspensionRequest{}, domain.ErrSuspensionNotFound
	}

	args := []any{tenantID, string(t)}
	for _, s := range statuses {
		args = append(args, string(s))
	}

	return scanSuspension(r.db.QueryRowContext(ctx,
		`SELECT `+suspensionColumns+` FROM suspension_requests
		 WHERE tenant_id = ? AND type = ? AND status IN (`+placeholders(len(statuses))+`)
		 ORDER BY requested_at DESC, rowid DESC LIMIT 1`,
		args...,
	))
}

func (r *SuspensionRepository) LatestWithStatus(ctx context.Context, tenantID string, status domain.SuspensionStatus) (domain.SuspensionRequest, error) {
	return scanSuspension(r.db.QueryRowContext(ctx,
		`SELECT `+suspensionColumns+` FROM suspension_requests
		 WHERE tenant_id = ? AND status = ?
		 ORDER BY requested_at DESC, rowid DESC LIMIT 1`,
		tenantID, string(status),
	))
}

func (r *SuspensionRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.SuspensionRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+suspensionColumns+` FROM suspension_requests
		 WHERE tenant_id = ?
		 ORDER BY requested_at DESC, rowid DESC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing suspension requests: %w", err)
	}
	return collectSuspensions(rows)
}

func (r *SuspensionRepository) Transition(ctx context.Context, from domain.SuspensionStatus, req domain.SuspensionRequest) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE suspension_requests
		 SET status = ?, scheduled_stop_at = ?, cancelled_at = ?, executed_at = ?
		 WHERE id = ? AND status = ?`,
		string(req.Status),
		nullTime(req.ScheduledStopAt),
		nullTime(req.CancelledAt),
		nullTime(req.ExecutedAt),
		req.ID, string(from),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrActiveSuspensionExists
		}
		return fmt.Errorf("updating suspension request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, req.ID); err != nil {
			return err
		}
		return domain.ErrStaleState
	}
	return nil
}

// ClaimDue selects and claims in one statement, so two runs never claim the
// same row.
func (r *SuspensionRepository) ClaimDue(ctx context.Context, now time.Time, claimID string, limit int) ([]domain.SuspensionRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE suspension_requests
		 SET status = ?, claimed_by = ?, claimed_at = ?
		 WHERE id IN (
			SELECT id FROM suspension_requests
			WHERE status = ? AND scheduled_stop_at IS NOT NULL AND scheduled_stop_at <= ?
			ORDER BY scheduled_stop_at, rowid
			LIMIT ?
		 )
		 RETURNING `+suspensionColumns,
		string(domain.SuspensionExecuting), claimID, formatTime(now),
		string(domain.SuspensionApproved), formatTime(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming due requests: %w", err)
	}
	return collectSuspensions(rows)
}

func (r *SuspensionRepository) MarkExecuted(ctx context.Context, id, claimID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE suspension_requests SET status = ?, executed_at = ?
		 WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(domain.SuspensionExecuted), formatTime(at),
		id, string(domain.SuspensionExecuting), claimID,
	)
	if err != nil {
		return fmt.Errorf("marking request executed: %w", err)
	}
	return requireClaim(result)
}

func (r *SuspensionRepository) ReleaseClaim(ctx context.Context, id, claimID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE suspension_requests SET status = ?, claimed_by = NULL, claimed_at = NULL
		 WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(domain.SuspensionApproved),
		id, string(domain.SuspensionExecuting), claimID,
	)
	if err != nil {
		return fmt.Errorf("releasing claim: %w", err)
	}
	return requireClaim(result)
}

func (r *SuspensionRepository) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE suspension_requests SET status = ?, claimed_by = NULL, claimed_at = NULL
		 WHERE status = ? AND claimed_at < ?`,
		string(domain.SuspensionApproved),
		string(domain.SuspensionExecuting), formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("releasing stale claims: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(rows), nil
}

// requireClaim reports ErrStaleState when the claim was lost.
func requireClaim(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrStaleState
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func collectSuspensions(rows *sql.Rows) ([]domain.SuspensionRequest, error) {
	defer rows.Close()

	var out []domain.SuspensionRequest
	for rows.Next() {
		req, err := scanSuspension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanSuspension(row scanner) (domain.SuspensionRequest, error) {
	var req domain.SuspensionRequest
	var typ, status, requestedAt string
	var stopAt, cancelledAt, executedAt, claimedBy, claimedAt sql.NullString

	err := row.Scan(&req.ID, &req.TenantID, &typ, &status, &req.RequestedBy, &requestedAt,
		&stopAt, &cancelledAt, &executedAt, &claimedBy, &claimedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SuspensionRequest{}, domain.ErrSuspensionNotFound
		}
		return domain.SuspensionRequest{}, fmt.Errorf("scanning suspension request: %w", err)
	}

	req.Type = domain.SuspensionType(typ)
	req.Status = domain.SuspensionStatus(status)
	req.RequestedAt = parseTime(requestedAt)
	req.ScheduledStopAt = parseNullTime(stopAt)
	req.CancelledAt = parseNullTime(cancelledAt)
	req.ExecutedAt = parseNullTime(executedAt)
	req.ClaimedBy = claimedBy.String
	req.ClaimedAt = parseNullTime(claimedAt)

	return req, nil
}
