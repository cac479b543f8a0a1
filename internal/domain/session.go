package domain

import "time"

// Session limits.
const (
	// MaxExtensionPerCall caps the minutes a single ExtendTime call may add.
	MaxExtensionPerCall = 20
	// MaxExtensionTotal caps the cumulative extension of one session.
	MaxExtensionTotal = 20
	// MaxEventTextLength is the longest transcript entry, in characters.
	MaxEventTextLength = 5000
	// BillableAfterSeconds is the duration a session must exceed to be billable.
	BillableAfterSeconds = 600
)

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	SessionLive       SessionStatus = "live"
	SessionTerminated SessionStatus = "terminated"
)

// SessionTransitions defines every legal session state change.
// Terminated has no outgoing transitions.
var SessionTransitions = []Transition[SessionStatus]{
	{Action: ActionRecordEvent, Src: SessionLive, Dst: SessionLive},
	{Action: ActionExtend, Src: SessionLive, Dst: SessionLive},
	{Action: ActionHintReason, Src: SessionLive, Dst: SessionLive},
	{Action: ActionComplete, Src: SessionLive, Dst: SessionTerminated},
}

// EndReason explains why a session ended.
type EndReason string

const (
	EndCompleted     EndReason = "completed"
	EndUserEnded     EndReason = "user_ended"
	EndTimeout       EndReason = "timeout"
	EndSilence       EndReason = "silence"
	EndInappropriate EndReason = "inappropriate"
	EndDisconnected  EndReason = "disconnected"
	EndBrowserClosed EndReason = "browser_closed"
)

// EndReasons lists every known end reason.
var EndReasons = []EndReason{
	EndCompleted, EndUserEnded, EndTimeout, EndSilence,
	EndInappropriate, EndDisconnected, EndBrowserClosed,
}

// Billable reports whether a finished session counts toward quota and billing.
func Billable(durationSeconds int, reason EndReason) bool {
	return durationSeconds > BillableAfterSeconds && reason != EndInappropriate
}

// Session is one timed interview belonging to a tenant and a candidate.
type Session struct {
	ID                string
	TenantID          string
	CandidateID       string
	Status            SessionStatus
	EndReason         EndReason
	DurationSeconds   int
	TotalQuestions    int
	AnsweredQuestions int
	ExtendedMinutes   int
	Billable          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// NewSession creates a live session.
func NewSession(id, tenantID, candidateID string, now time.Time) Session {
	now = now.UTC()
	return Session{
		ID:          id,
		TenantID:    tenantID,
		CandidateID: candidateID,
		Status:      SessionLive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Completion is the terminal outcome written when a session ends.
type Completion struct {
	Reason          EndReason
	DurationSeconds int
	TotalQuestions  int
	Billable        bool
	CompletedAt     time.Time
}

// Speaker identifies who authored a transcript event.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// Event is one append-only transcript entry of a session.
type Event struct {
	ID          string
	SessionID   string
	Speaker     Speaker
	Text        string
	QuestionRef string
	// Timestamp is the logical time in milliseconds; it defines transcript order.
	Timestamp int64
	CreatedAt time.Time
}
