package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// SessionRepository implements domain.SessionRepository using SQLite.
// Mutations are single conditional statements on status = 'live', so a
// concurrent Complete always wins or loses as a whole.
type SessionRepository struct {
	db *sql.DB
}

const sessionColumns = `id, tenant_id, candidate_id, status, end_reason, duration_seconds,
	total_questions, answered_questions, extended_minutes, billable,
	created_at, updated_at, completed_at`

// CreateWithinQuota counts and inserts in one statement.
func (r *SessionRepository) CreateWithinQuota(ctx context.Context, s domain.Session, limit *int, periodStart time.Time) error {
	var quota any
	if limit != nil {
		quota = *limit
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, tenant_id, candidate_id, status, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?
		 WHERE ? IS NULL OR (
			SELECT COUNT(*) FROM sessions
			WHERE tenant_id = ? AND billable = 1 AND created_at >= ?
		 ) < ?`,
		s.ID, s.TenantID, s.CandidateID, string(s.Status),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
		quota, s.TenantID, formatTime(periodStart), quota,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrTenantNotFound
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrQuotaExhausted
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
}

func (r *SessionRepository) CountBillableSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE tenant_id = ? AND billable = 1 AND created_at >= ?`,
		tenantID, formatTime(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting billable sessions: %w", err)
	}
	return n, nil
}

func (r *SessionRepository) AppendEvent(ctx context.Context, e domain.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET answered_questions = answered_questions + ?, updated_at = ?
		 WHERE id = ? AND status = 'live'`,
		answerIncrement(e.Speaker), formatTime(e.CreatedAt), e.SessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if err := requireLive(ctx, tx, result, e.SessionID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_events (id, session_id, speaker, text, question_ref, timestamp_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, string(e.Speaker), e.Text, e.QuestionRef, e.Timestamp,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return tx.Commit()
}

func answerIncrement(s domain.Speaker) int {
	if s == domain.SpeakerCandidate {
		return 1
	}
	return 0
}

func (r *SessionRepository) ListEvents(ctx context.Context, sessionID string) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, speaker, text, question_ref, timestamp_ms, created_at
		 FROM session_events WHERE session_id = ?
		 ORDER BY timestamp_ms, rowid`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var speaker, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &speaker, &e.Text, &e.QuestionRef, &e.Timestamp, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.Speaker = domain.Speaker(speaker)
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}

	return events, rows.Err()
}

func (r *SessionRepository) AddExtension(ctx context.Context, id string, minutes, limit int, at time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`UPDATE sessions
		 SET extended_minutes = extended_minutes + ?, updated_at = ?
		 WHERE id = ? AND status = 'live' AND extended_minutes + ? <= ?
		 RETURNING extended_minutes`,
		minutes, formatTime(at), id, minutes, limit,
	).Scan(&total)
	if err == nil {
		return total, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("extending session: %w", err)
	}

	status, err := sessionStatus(ctx, r.db, id)
	if err != nil {
		return 0, err
	}
	if status != domain.SessionLive {
		return 0, domain.ErrSessionTerminated
	}
	return 0, domain.ErrExtensionCapExceeded
}

func (r *SessionRepository) SetEndReason(ctx context.Context, id string, reason domain.EndReason, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET end_reason = ?, updated_at = ?
		 WHERE id = ? AND status = 'live'`,
		string(reason), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("setting end reason: %w", err)
	}
	return requireLive(ctx, r.db, result, id)
}

func (r *SessionRepository) Complete(ctx context.Context, id string, c domain.Completion) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET status = ?, end_reason = ?, duration_seconds = ?, total_questions = ?,
		     billable = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'live'`,
		string(domain.SessionTerminated), string(c.Reason), c.DurationSeconds, c.TotalQuestions,
		c.Billable, formatTime(c.CompletedAt), formatTime(c.CompletedAt), id,
	)
	if err != nil {
		return fmt.Errorf("completing session: %w", err)
	}
	return requireLive(ctx, r.db, result, id)
}

// requireLive turns a conditional update that touched no rows into
// ErrSessionNotFound or ErrSessionTerminated.
func requireLive(ctx context.Context, q rowQuerier, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := sessionStatus(ctx, q, id); err != nil {
		return err
	}
	return domain.ErrSessionTerminated
}

func sessionStatus(ctx context.Context, q rowQuerier, id string) (domain.SessionStatus, error) {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("reading session status: %w", err)
	}
	return domain.SessionStatus(status), nil
}

func scanSession(row scanner) (domain.Session, error) {
	var s domain.Session
	var status, createdAt, updatedAt string
	var reason, completedAt sql.NullString

	err := row.Scan(&s.ID, &s.TenantID, &s.CandidateID, &status, &reason, &s.DurationSeconds,
		&s.TotalQuestions, &s.AnsweredQuestions, &s.ExtendedMinutes, &s.Billable,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("scanning session: %w", err)
	}

	s.Status = domain.SessionStatus(status)
	s.EndReason = domain.EndReason(reason.String)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	s.CompletedAt = parseNullTime(completedAt)

	return s, nil
}
