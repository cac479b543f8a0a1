package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

// Report and feedback generation start asynchronously after completion.
const statusGenerating = "generating"

// SessionResponse is the API representation of a session.
type SessionResponse struct {
	ID                string `json:"id" doc:"Unique identifier"`
	TenantID          string `json:"tenantId" doc:"Owning tenant"`
	CandidateID       string `json:"candidateId" doc:"Interviewed candidate"`
	Status            string `json:"status" doc:"live or terminated"`
	EndReason         string `json:"endReason,omitempty" doc:"Why the session ended, or the latest hint while live"`
	DurationSeconds   int    `json:"durationSeconds" doc:"Reported duration"`
	TotalQuestions    int    `json:"totalQuestions" doc:"Questions asked"`
	AnsweredQuestions int    `json:"answeredQuestions" doc:"Candidate answers recorded"`
	ExtendedMinutes   int    `json:"extendedMinutes" doc:"Cumulative time extension"`
	Billable          bool   `json:"billable" doc:"Counts toward quota and billing"`
	CreatedAt         string `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
	CompletedAt       string `json:"completedAt,omitempty" doc:"Termination timestamp (ISO 8601)"`
}

func toSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:                s.ID,
		TenantID:          s.TenantID,
		CandidateID:       s.CandidateID,
		Status:            string(s.Status),
		EndReason:         string(s.EndReason),
		DurationSeconds:   s.DurationSeconds,
		TotalQuestions:    s.TotalQuestions,
		AnsweredQuestions: s.AnsweredQuestions,
		ExtendedMinutes:   s.ExtendedMinutes,
		Billable:          s.Billable,
		CreatedAt:         formatTime(s.CreatedAt),
		CompletedAt:       formatOptionalTime(s.CompletedAt),
	}
}

// EventResponse is one transcript entry.
type EventResponse struct {
	EventID     string `json:"eventId" doc:"Unique identifier"`
	SessionID   string `json:"sessionId"`
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	QuestionRef string `json:"questionRef"`
	TimestampMs int64  `json:"timestampMs" doc:"Logical time in milliseconds"`
}

func toEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		EventID:     e.ID,
		SessionID:   e.SessionID,
		Speaker:     string(e.Speaker),
		Text:        e.Text,
		QuestionRef: e.QuestionRef,
		TimestampMs: e.Timestamp,
	}
}

// --- Admission ---

type AdmissionInput struct {
	Slug string `path:"slug" doc:"Public tenant slug"`
}

type AdmissionTenant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoRef string `json:"logoRef"`
}

type AdmissionOutput struct {
	Body struct {
		Tenant    AdmissionTenant `json:"tenant"`
		Available bool            `json:"available" doc:"False once the billing period quota is used up"`
	}
}

// --- Start ---

type StartSessionInput struct {
	Body struct {
		Slug        string `json:"slug" doc:"Public tenant slug"`
		CandidateID string `json:"candidateId" doc:"Candidate identifier"`
	}
}

type SessionOutput struct {
	Body SessionResponse
}

type SessionIDInput struct {
	SessionID string `path:"sessionId" doc:"Session ID"`
}

// --- Events ---

type RecordEventInput struct {
	SessionID string `path:"sessionId" doc:"Session ID"`
	Body      struct {
		QuestionRef string `json:"questionRef" doc:"Question being answered"`
		Speaker     string `json:"speaker" doc:"interviewer or candidate"`
		Text        string `json:"text" doc:"Transcript text; must not be blank"`
		TimestampMs *int64 `json:"timestampMs,omitempty" doc:"Logical time in milliseconds; defaults to now"`
	}
}

type RecordEventOutput struct {
	Body EventResponse
}

type TranscriptOutput struct {
	Body []EventResponse
}

// --- Extend ---

type ExtendInput struct {
	SessionID string `path:"sessionId" doc:"Session ID"`
	Body      struct {
		Minutes int `json:"minutes" doc:"Minutes to add"`
	}
}

type ExtendOutput struct {
	Body struct {
		SessionID            string `json:"sessionId"`
		ExtendedMinutesTotal int    `json:"extendedMinutesTotal"`
	}
}

// --- End reason ---

type EndReasonInput struct {
	SessionID string `path:"sessionId" doc:"Session ID"`
	Body      struct {
		Reason string `json:"reason" doc:"Expected end reason"`
	}
}

type EndReasonOutput struct {
	Body struct {
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason"`
	}
}

// --- Complete ---

type CompleteInput struct {
	SessionID string `path:"sessionId" doc:"Session ID"`
	Body      struct {
		Reason          string `json:"reason" doc:"Why the session ended"`
		DurationSeconds int    `json:"durationSeconds" doc:"Session duration"`
		QuestionCount   int    `json:"questionCount" doc:"Questions asked"`
	}
}

type CompleteOutput struct {
	Body struct {
		SessionID      string `json:"sessionId"`
		Billable       bool   `json:"billable"`
		ReportStatus   string `json:"reportStatus"`
		FeedbackStatus string `json:"feedbackStatus"`
	}
}

func registerSessionRoutes(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID: "resolve-admission",
		Method:      http.MethodGet,
		Path:        "/api/v1/admission/{slug}",
		Summary:     "Check whether a tenant may start sessions",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *AdmissionInput) (*AdmissionOutput, error) {
		adm, err := svc.Gate.Resolve(ctx, input.Slug)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &AdmissionOutput{}
		out.Body.Tenant = AdmissionTenant{ID: adm.Tenant.ID, Name: adm.Tenant.Name, LogoRef: adm.Tenant.LogoRef}
		out.Body.Available = adm.Available
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Start a live session",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *StartSessionInput) (*SessionOutput, error) {
		s, err := svc.Sessions.Start(ctx, app.StartInput{
			Slug:        input.Body.Slug,
			CandidateID: input.Body.CandidateID,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SessionOutput{Body: toSessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{sessionId}",
		Summary:     "Get a session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
		s, err := svc.Sessions.Get(ctx, input.SessionID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SessionOutput{Body: toSessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-event",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{sessionId}/events",
		Summary:       "Append a transcript event",
		Description:   "Text must contain at least one non-whitespace character and at most 5000 characters. Send silent turns as an end-reason hint instead.",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RecordEventInput) (*RecordEventOutput, error) {
		e, err := svc.Sessions.RecordEvent(ctx, app.RecordEventInput{
			SessionID:   input.SessionID,
			QuestionRef: input.Body.QuestionRef,
			Speaker:     domain.Speaker(input.Body.Speaker),
			Text:        input.Body.Text,
			TimestampMs: input.Body.TimestampMs,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RecordEventOutput{Body: toEventResponse(e)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{sessionId}/events",
		Summary:     "Get the ordered transcript",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*TranscriptOutput, error) {
		events, err := svc.Sessions.Transcript(ctx, input.SessionID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]EventResponse, len(events))
		for i, e := range events {
			resp[i] = toEventResponse(e)
		}
		return &TranscriptOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "extend-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{sessionId}/extend",
		Summary:     "Extend the session time",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ExtendInput) (*ExtendOutput, error) {
		s, err := svc.Sessions.ExtendTime(ctx, input.SessionID, input.Body.Minutes)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ExtendOutput{}
		out.Body.SessionID = s.ID
		out.Body.ExtendedMinutesTotal = s.ExtendedMinutes
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-end-reason",
		Method:      http.MethodPut,
		Path:        "/api/v1/sessions/{sessionId}/end-reason",
		Summary:     "Record the expected end reason",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *EndReasonInput) (*EndReasonOutput, error) {
		s, err := svc.Sessions.SetEndReasonHint(ctx, input.SessionID, domain.EndReason(input.Body.Reason))
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &EndReasonOutput{}
		out.Body.SessionID = s.ID
		out.Body.Reason = string(s.EndReason)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{sessionId}/complete",
		Summary:     "Terminate the session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *CompleteInput) (*CompleteOutput, error) {
		s, err := svc.Sessions.Complete(ctx, app.CompleteInput{
			SessionID:       input.SessionID,
			Reason:          domain.EndReason(input.Body.Reason),
			DurationSeconds: input.Body.DurationSeconds,
			QuestionCount:   input.Body.QuestionCount,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &CompleteOutput{}
		out.Body.SessionID = s.ID
		out.Body.Billable = s.Billable
		out.Body.ReportStatus = statusGenerating
		out.Body.FeedbackStatus = statusGenerating
		return out, nil
	})
}
