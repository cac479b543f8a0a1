package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/neomorfeo/sessiongate/internal/adapter/fsm"
	"github.com/neomorfeo/sessiongate/internal/domain"
)

func TestSessionValidator_AllTransitions(t *testing.T) {
	v := adapter.NewSession()
	ctx := context.Background()

	for _, tr := range domain.SessionTransitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Action)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Action, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Action, dst, tr.Dst)
		}
	}
}

func TestSessionValidator_SelfTransitionKeepsLive(t *testing.T) {
	v := adapter.NewSession()

	got, err := v.Apply(context.Background(), domain.SessionLive, domain.ActionRecordEvent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.SessionLive {
		t.Errorf("got %q, want %q", got, domain.SessionLive)
	}
}

func TestSessionValidator_TerminatedRejectsEverything(t *testing.T) {
	v := adapter.NewSession()
	ctx := context.Background()

	for _, action := range []domain.Action{
		domain.ActionRecordEvent, domain.ActionExtend, domain.ActionHintReason, domain.ActionComplete,
	} {
		_, err := v.Apply(ctx, domain.SessionTerminated, action)
		var trErr *domain.TransitionError
		if !errors.As(err, &trErr) {
			t.Fatalf("Apply(terminated, %q): expected TransitionError, got %v", action, err)
		}
		if trErr.Action != action {
			t.Errorf("action = %q, want %q", trErr.Action, action)
		}
		if trErr.Current != string(domain.SessionTerminated) {
			t.Errorf("current = %q, want %q", trErr.Current, domain.SessionTerminated)
		}
		if domain.KindOf(err) != domain.KindConflict {
			t.Errorf("kind = %q, want %q", domain.KindOf(err), domain.KindConflict)
		}
	}
}

func TestSuspensionValidator_AllTransitions(t *testing.T) {
	v := adapter.NewSuspension()
	ctx := context.Background()

	for _, tr := range domain.SuspensionTransitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Action)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Action, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Action, dst, tr.Dst)
		}
	}
}

func TestSuspensionValidator_FullLifecycle(t *testing.T) {
	v := adapter.NewSuspension()
	ctx := context.Background()

	steps := []struct {
		from   domain.SuspensionStatus
		action domain.Action
		want   domain.SuspensionStatus
	}{
		{domain.SuspensionPending, domain.ActionApprove, domain.SuspensionApproved},
		{domain.SuspensionApproved, domain.ActionClaim, domain.SuspensionExecuting},
		{domain.SuspensionExecuting, domain.ActionRelease, domain.SuspensionApproved},
		{domain.SuspensionApproved, domain.ActionClaim, domain.SuspensionExecuting},
		{domain.SuspensionExecuting, domain.ActionExecute, domain.SuspensionExecuted},
	}

	for _, step := range steps {
		got, err := v.Apply(ctx, step.from, step.action)
		if err != nil {
			t.Fatalf("Apply(%q, %q) error: %v", step.from, step.action, err)
		}
		if got != step.want {
			t.Errorf("Apply(%q, %q) = %q, want %q", step.from, step.action, got, step.want)
		}
	}
}

func TestSuspensionValidator_CancelOnlyFromPending(t *testing.T) {
	v := adapter.NewSuspension()

	_, err := v.Apply(context.Background(), domain.SuspensionApproved, domain.ActionCancel)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestValidator_UnknownAction(t *testing.T) {
	v := adapter.NewSession()

	_, err := v.Apply(context.Background(), domain.SessionLive, domain.Action("teleport"))
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}
