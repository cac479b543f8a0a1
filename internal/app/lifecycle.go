package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/sessiongate/internal/domain"
	"github.com/neomorfeo/sessiongate/internal/validate"
)

// maxQuestionRefLength bounds the question reference of a transcript event.
const maxQuestionRefLength = 100

// SessionLifecycle drives interview sessions from live to terminated.
// Every mutation is checked against the session transition table first and
// then written conditionally, so a session terminated concurrently still
// rejects the write.
type SessionLifecycle struct {
	gate      *TenantGate
	sessions  domain.SessionRepository
	validator domain.TransitionValidator[domain.SessionStatus]
	publisher domain.EventPublisher
	opts      options
}

// NewSessionLifecycle creates the session service.
func NewSessionLifecycle(
	gate *TenantGate,
	sessions domain.SessionRepository,
	validator domain.TransitionValidator[domain.SessionStatus],
	publisher domain.EventPublisher,
	opts ...Option,
) *SessionLifecycle {
	return &SessionLifecycle{
		gate:      gate,
		sessions:  sessions,
		validator: validator,
		publisher: publisher,
		opts:      newOptions(opts),
	}
}

// StartInput identifies who is starting an interview and for which tenant.
type StartInput struct {
	Slug        string
	CandidateID string
}

// Start admits a new live session for the tenant behind slug. Unlike
// Resolve, an exhausted quota is a hard ErrQuotaExhausted here, and the
// quota is re-counted atomically with the insert.
func (l *SessionLifecycle) Start(ctx context.Context, in StartInput) (domain.Session, error) {
	if err := validate.ID("candidateId", in.CandidateID); err != nil {
		return domain.Session{}, err
	}

	adm, err := l.gate.Resolve(ctx, in.Slug)
	if err != nil {
		return domain.Session{}, err
	}
	if !adm.Available {
		return domain.Session{}, domain.ErrQuotaExhausted
	}

	id, err := generateID()
	if err != nil {
		return domain.Session{}, fmt.Errorf("generating session id: %w", err)
	}

	now := l.opts.now()
	session := domain.NewSession(id, adm.Tenant.ID, in.CandidateID, now)
	periodStart := domain.BillingPeriodStart(now, adm.Tenant.BillingCycleStart)

	if err := l.sessions.CreateWithinQuota(ctx, session, adm.Tenant.PlanLimit, periodStart); err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("creating session: %w", err)
	}

	l.opts.logger.InfoContext(ctx, "session started",
		"session_id", session.ID,
		"tenant_id", session.TenantID,
	)
	return session, nil
}

// Get returns a snapshot of the session.
func (l *SessionLifecycle) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := validate.ID("sessionId", sessionID); err != nil {
		return domain.Session{}, err
	}
	return l.sessions.GetByID(ctx, sessionID)
}

// Transcript returns the session's events in logical timestamp order.
func (l *SessionLifecycle) Transcript(ctx context.Context, sessionID string) ([]domain.Event, error) {
	if _, err := l.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	events, err := l.sessions.ListEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// RecordEventInput is one transcript entry to append.
type RecordEventInput struct {
	SessionID   string
	QuestionRef string
	Speaker     domain.Speaker
	Text        string
	// TimestampMs is the caller's logical time. Nil means now.
	TimestampMs *int64
}

// RecordEvent appends a transcript event. Candidate events count as an
// answered question.
func (l *SessionLifecycle) RecordEvent(ctx context.Context, in RecordEventInput) (domain.Event, error) {
	if err := validate.ID("sessionId", in.SessionID); err != nil {
		return domain.Event{}, err
	}
	if err := validate.OneOf("speaker", in.Speaker, []domain.Speaker{domain.SpeakerInterviewer, domain.SpeakerCandidate}); err != nil {
		return domain.Event{}, err
	}
	if err := validate.Text("text", in.Text, domain.MaxEventTextLength); err != nil {
		return domain.Event{}, err
	}
	if err := validate.Text("questionRef", in.QuestionRef, maxQuestionRefLength); err != nil {
		return domain.Event{}, err
	}
	if in.TimestampMs != nil && *in.TimestampMs < 0 {
		return domain.Event{}, &domain.ValidationError{Field: "timestampMs", Reason: "must be at least 0"}
	}

	if _, err := l.guard(ctx, in.SessionID, domain.ActionRecordEvent); err != nil {
		return domain.Event{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Event{}, fmt.Errorf("generating event id: %w", err)
	}

	now := l.opts.now()
	event := domain.Event{
		ID:          id,
		SessionID:   in.SessionID,
		Speaker:     in.Speaker,
		Text:        in.Text,
		QuestionRef: in.QuestionRef,
		Timestamp:   now.UnixMilli(),
		CreatedAt:   now,
	}
	if in.TimestampMs != nil {
		event.Timestamp = *in.TimestampMs
	}

	if err := l.sessions.AppendEvent(ctx, event); err != nil {
		return domain.Event{}, storeErr("appending event", err)
	}
	return event, nil
}

// ExtendTime adds minutes to the session's time allowance. Both the
// per-call cap and the cumulative cap apply.
func (l *SessionLifecycle) ExtendTime(ctx context.Context, sessionID string, minutes int) (domain.Session, error) {
	if err := validate.ID("sessionId", sessionID); err != nil {
		return domain.Session{}, err
	}
	if err := validate.IntRange("minutes", minutes, 1, domain.MaxExtensionPerCall); err != nil {
		return domain.Session{}, err
	}

	session, err := l.guard(ctx, sessionID, domain.ActionExtend)
	if err != nil {
		return domain.Session{}, err
	}
	if session.ExtendedMinutes+minutes > domain.MaxExtensionTotal {
		return domain.Session{}, domain.ErrExtensionCapExceeded
	}

	now := l.opts.now()
	total, err := l.sessions.AddExtension(ctx, sessionID, minutes, domain.MaxExtensionTotal, now)
	if err != nil {
		return domain.Session{}, storeErr("extending session", err)
	}

	session.ExtendedMinutes = total
	session.UpdatedAt = now
	l.opts.logger.InfoContext(ctx, "session extended",
		"session_id", sessionID,
		"minutes", minutes,
		"extended_total", total,
	)
	return session, nil
}

// SetEndReasonHint records the likely end reason ahead of Complete without
// ending the session. Calling it again overwrites the hint.
func (l *SessionLifecycle) SetEndReasonHint(ctx context.Context, sessionID string, reason domain.EndReason) (domain.Session, error) {
	if err := validate.ID("sessionId", sessionID); err != nil {
		return domain.Session{}, err
	}
	if err := validate.OneOf("reason", reason, domain.EndReasons); err != nil {
		return domain.Session{}, err
	}

	session, err := l.guard(ctx, sessionID, domain.ActionHintReason)
	if err != nil {
		return domain.Session{}, err
	}

	now := l.opts.now()
	if err := l.sessions.SetEndReason(ctx, sessionID, reason, now); err != nil {
		return domain.Session{}, storeErr("setting end reason", err)
	}

	session.EndReason = reason
	session.UpdatedAt = now
	return session, nil
}

// CompleteInput is the final report of a finished session.
type CompleteInput struct {
	SessionID       string
	Reason          domain.EndReason
	DurationSeconds int
	QuestionCount   int
}

// Complete terminates the session and decides whether it is billable.
func (l *SessionLifecycle) Complete(ctx context.Context, in CompleteInput) (domain.Session, error) {
	if err := validate.ID("sessionId", in.SessionID); err != nil {
		return domain.Session{}, err
	}
	if err := validate.OneOf("reason", in.Reason, domain.EndReasons); err != nil {
		return domain.Session{}, err
	}
	if err := validate.NonNegative("durationSeconds", in.DurationSeconds); err != nil {
		return domain.Session{}, err
	}
	if err := validate.NonNegative("questionCount", in.QuestionCount); err != nil {
		return domain.Session{}, err
	}

	session, err := l.guard(ctx, in.SessionID, domain.ActionComplete)
	if err != nil {
		return domain.Session{}, err
	}

	outcome := domain.Completion{
		Reason:          in.Reason,
		DurationSeconds: in.DurationSeconds,
		TotalQuestions:  in.QuestionCount,
		Billable:        domain.Billable(in.DurationSeconds, in.Reason),
		CompletedAt:     l.opts.now(),
	}

	if err := l.sessions.Complete(ctx, in.SessionID, outcome); err != nil {
		return domain.Session{}, storeErr("completing session", err)
	}

	session.Status = domain.SessionTerminated
	session.EndReason = outcome.Reason
	session.DurationSeconds = outcome.DurationSeconds
	session.TotalQuestions = outcome.TotalQuestions
	session.Billable = outcome.Billable
	session.CompletedAt = &outcome.CompletedAt
	session.UpdatedAt = outcome.CompletedAt

	l.opts.logger.InfoContext(ctx, "session completed",
		"session_id", session.ID,
		"tenant_id", session.TenantID,
		"reason", outcome.Reason,
		"duration_seconds", outcome.DurationSeconds,
		"billable", outcome.Billable,
	)

	// The termination is committed; publish failures are only logged.
	if err := l.publisher.Publish(ctx, domain.Notification{
		Topic:     domain.TopicSessionCompleted,
		TenantID:  session.TenantID,
		SessionID: session.ID,
		Billable:  session.Billable,
	}); err != nil {
		l.opts.logger.ErrorContext(ctx, "publishing session completion",
			"session_id", session.ID,
			"error", err,
		)
	}

	return session, nil
}

// guard loads the session and checks that action is legal from its status.
func (l *SessionLifecycle) guard(ctx context.Context, sessionID string, action domain.Action) (domain.Session, error) {
	session, err := l.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	if _, err := l.validator.Apply(ctx, session.Status, action); err != nil {
		var trErr *domain.TransitionError
		if errors.As(err, &trErr) && session.Status == domain.SessionTerminated {
			return domain.Session{}, fmt.Errorf("%w: %w", domain.ErrSessionTerminated, err)
		}
		return domain.Session{}, err
	}
	return session, nil
}

// storeErr passes classified store errors through and wraps the rest.
func storeErr(op string, err error) error {
	if domain.KindOf(err) != domain.KindInternal {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
