package app_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

// --- Transition validator ---

// tableValidator checks actions directly against a domain transition table.
type tableValidator[S ~string] struct {
	table []domain.Transition[S]
}

func (v tableValidator[S]) Apply(_ context.Context, current S, action domain.Action) (S, error) {
	if dst, ok := domain.Destination(v.table, current, action); ok {
		return dst, nil
	}
	return "", &domain.TransitionError{Action: action, Current: string(current)}
}

var (
	sessionValidator    = tableValidator[domain.SessionStatus]{table: domain.SessionTransitions}
	suspensionValidator = tableValidator[domain.SuspensionStatus]{table: domain.SuspensionTransitions}
)

// --- Tenants ---

type mockTenants struct {
	mu          sync.Mutex
	tenants     map[string]domain.Tenant
	failSuspend map[string]bool
	suspendHits map[string]int
}

func newMockTenants() *mockTenants {
	return &mockTenants{
		tenants:     make(map[string]domain.Tenant),
		failSuspend: make(map[string]bool),
		suspendHits: make(map[string]int),
	}
}

func (m *mockTenants) Create(_ context.Context, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if existing.Slug == t.Slug {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenants) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockTenants) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockTenants) SetSuspended(_ context.Context, id string, suspended bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSuspend[id] {
		return errors.New("tenant store unavailable")
	}
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrTenantNotFound
	}
	t.Suspended = suspended
	t.UpdatedAt = at
	m.tenants[id] = t
	m.suspendHits[id]++
	return nil
}

func (m *mockTenants) hits(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspendHits[id]
}

// --- Sessions ---

type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	events   []domain.Event
	calls    int
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]domain.Session)}
}

func (m *mockSessions) put(s domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *mockSessions) get(id string) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *mockSessions) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockSessions) CreateWithinQuota(_ context.Context, s domain.Session, limit *int, since time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if limit != nil {
		used := 0
		for _, existing := range m.sessions {
			if existing.TenantID != s.TenantID || existing.CreatedAt.Before(since) {
				continue
			}
			if existing.Billable {
				used++
			}
		}
		if used >= *limit {
			return domain.ErrQuotaExhausted
		}
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessions) GetByID(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessions) CountBillableSince(_ context.Context, tenantID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	n := 0
	for _, s := range m.sessions {
		if s.TenantID == tenantID && s.Billable && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// live returns the session if it is still live. Callers hold m.mu.
func (m *mockSessions) live(id string) (domain.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if s.Status != domain.SessionLive {
		return domain.Session{}, domain.ErrSessionTerminated
	}
	return s, nil
}

func (m *mockSessions) AppendEvent(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, err := m.live(e.SessionID)
	if err != nil {
		return err
	}
	if e.Speaker == domain.SpeakerCandidate {
		s.AnsweredQuestions++
		m.sessions[s.ID] = s
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockSessions) ListEvents(_ context.Context, sessionID string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *mockSessions) AddExtension(_ context.Context, id string, minutes, max int, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, err := m.live(id)
	if err != nil {
		return 0, err
	}
	if s.ExtendedMinutes+minutes > max {
		return 0, domain.ErrExtensionCapExceeded
	}
	s.ExtendedMinutes += minutes
	s.UpdatedAt = at
	m.sessions[id] = s
	return s.ExtendedMinutes, nil
}

func (m *mockSessions) SetEndReason(_ context.Context, id string, reason domain.EndReason, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, err := m.live(id)
	if err != nil {
		return err
	}
	s.EndReason = reason
	s.UpdatedAt = at
	m.sessions[id] = s
	return nil
}

func (m *mockSessions) Complete(_ context.Context, id string, c domain.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, err := m.live(id)
	if err != nil {
		return err
	}
	s.Status = domain.SessionTerminated
	s.EndReason = c.Reason
	s.DurationSeconds = c.DurationSeconds
	s.TotalQuestions = c.TotalQuestions
	s.Billable = c.Billable
	at := c.CompletedAt
	s.CompletedAt = &at
	m.sessions[id] = s
	return nil
}

// --- Suspension requests ---

type mockRequests struct {
	mu       sync.Mutex
	requests map[string]domain.SuspensionRequest
	order    []string
	// skipFindActive makes FindActive miss, to exercise the store-level guard.
	skipFindActive bool
	failMark       map[string]bool
}

func newMockRequests() *mockRequests {
	return &mockRequests{
		requests: make(map[string]domain.SuspensionRequest),
		failMark: make(map[string]bool),
	}
}

func (m *mockRequests) put(r domain.SuspensionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	m.requests[r.ID] = r
}

func (m *mockRequests) get(id string) domain.SuspensionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

func (m *mockRequests) Create(_ context.Context, r domain.SuspensionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.TenantID == r.TenantID && existing.Type == r.Type &&
			(existing.Status == domain.SuspensionPending || existing.Status == domain.SuspensionPendingApproval) {
			return domain.ErrActiveSuspensionExists
		}
	}
	m.requests[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *mockRequests) GetByID(_ context.Context, id string) (domain.SuspensionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return domain.SuspensionRequest{}, domain.ErrSuspensionNotFound
	}
	return r, nil
}

// newestFirst returns request ids from newest to oldest. Callers hold m.mu.
func (m *mockRequests) newestFirst() []string {
	ids := slices.Clone(m.order)
	slices.Reverse(ids)
	return ids
}

func (m *mockRequests) FindActive(_ context.Context, tenantID string, t domain.SuspensionType, statuses []domain.SuspensionStatus) (domain.SuspensionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipFindActive {
		return domain.SuspensionRequest{}, domain.ErrSuspensionNotFound
	}
	for _, id := range m.newestFirst() {
		r := m.requests[id]
		if r.TenantID == tenantID && r.Type == t && slices.Contains(statuses, r.Status) {
			return r, nil
		}
	}
	return domain.SuspensionRequest{}, domain.ErrSuspensionNotFound
}

func (m *mockRequests) LatestWithStatus(_ context.Context, tenantID string, status domain.SuspensionStatus) (domain.SuspensionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.newestFirst() {
		r := m.requests[id]
		if r.TenantID == tenantID && r.Status == status {
			return r, nil
		}
	}
	return domain.SuspensionRequest{}, domain.ErrSuspensionNotFound
}

func (m *mockRequests) ListByTenant(_ context.Context, tenantID string) ([]domain.SuspensionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SuspensionRequest
	for _, id := range m.newestFirst() {
		if r := m.requests[id]; r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRequests) Transition(_ context.Context, from domain.SuspensionStatus, r domain.SuspensionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.requests[r.ID]
	if !ok {
		return domain.ErrSuspensionNotFound
	}
	if current.Status != from {
		return domain.ErrStaleState
	}
	m.requests[r.ID] = r
	return nil
}

func (m *mockRequests) ClaimDue(_ context.Context, now time.Time, claimID string, limit int) ([]domain.SuspensionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SuspensionRequest
	for _, id := range m.order {
		if len(out) == limit {
			break
		}
		r := m.requests[id]
		if r.Status != domain.SuspensionApproved || r.ScheduledStopAt == nil || r.ScheduledStopAt.After(now) {
			continue
		}
		r.Status = domain.SuspensionExecuting
		r.ClaimedBy = claimID
		at := now
		r.ClaimedAt = &at
		m.requests[id] = r
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRequests) MarkExecuted(_ context.Context, id, claimID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMark[id] {
		return errors.New("request store unavailable")
	}
	r := m.requests[id]
	if r.Status != domain.SuspensionExecuting || r.ClaimedBy != claimID {
		return domain.ErrStaleState
	}
	r.Status = domain.SuspensionExecuted
	r.ExecutedAt = &at
	m.requests[id] = r
	return nil
}

func (m *mockRequests) ReleaseClaim(_ context.Context, id, claimID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.requests[id]
	if r.Status != domain.SuspensionExecuting || r.ClaimedBy != claimID {
		return domain.ErrStaleState
	}
	r.Status = domain.SuspensionApproved
	r.ClaimedBy = ""
	r.ClaimedAt = nil
	m.requests[id] = r
	return nil
}

func (m *mockRequests) ReleaseStaleClaims(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.requests {
		if r.Status == domain.SuspensionExecuting && r.ClaimedAt != nil && r.ClaimedAt.Before(olderThan) {
			r.Status = domain.SuspensionApproved
			r.ClaimedBy = ""
			r.ClaimedAt = nil
			m.requests[id] = r
			n++
		}
	}
	return n, nil
}

// --- Publisher ---

type mockPublisher struct {
	mu            sync.Mutex
	notifications []domain.Notification
	err           error
}

func (m *mockPublisher) Publish(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, n)
	return nil
}

// --- Helpers ---

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(v int) *int { return &v }

// testNow is the frozen clock used across app tests.
var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

// seedTenant stores a tenant with a random id.
func seedTenant(repo *mockTenants, slug string, limit *int) domain.Tenant {
	t := domain.NewTenant(uuid.NewString(), "Acme "+slug, slug, domain.PlanStarter, limit)
	t.CreatedAt = testNow
	t.UpdatedAt = testNow
	repo.tenants[t.ID] = t
	return t
}

// seedSession stores a session for tenantID created at createdAt.
func seedSession(repo *mockSessions, tenantID string, createdAt time.Time, status domain.SessionStatus, billable bool) domain.Session {
	s := domain.NewSession(uuid.NewString(), tenantID, uuid.NewString(), createdAt)
	s.Status = status
	s.Billable = billable
	repo.put(s)
	return s
}

// quiet silences service logging in tests.
var quiet = app.WithLogger(slog.New(slog.DiscardHandler))
