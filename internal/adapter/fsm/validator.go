package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// Compile-time checks: Validator implements domain.TransitionValidator for both machines.
var (
	_ domain.TransitionValidator[domain.SessionStatus]    = (*Validator[domain.SessionStatus])(nil)
	_ domain.TransitionValidator[domain.SuspensionStatus] = (*Validator[domain.SuspensionStatus])(nil)
)

// buildEvents converts a domain transition table into looplab/fsm EventDesc
// format. Transitions with the same action and destination are merged into a
// single EventDesc with several source states (e.g. approve from "pending"
// and "pending_approval" both go to "approved").
func buildEvents[S ~string](table []domain.Transition[S]) []loopfsm.EventDesc {
	type key struct {
		action string
		dst    string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range table {
		k := key{action: string(t.Action), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.action,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Apply call, initialized with
// the record's current state, because looplab/fsm tracks state internally.
type Validator[S ~string] struct {
	events []loopfsm.EventDesc
}

// New creates a validator for the given transition table.
func New[S ~string](table []domain.Transition[S]) *Validator[S] {
	return &Validator[S]{events: buildEvents(table)}
}

// NewSession creates the session state machine validator.
func NewSession() *Validator[domain.SessionStatus] {
	return New(domain.SessionTransitions)
}

// NewSuspension creates the suspension request state machine validator.
func NewSuspension() *Validator[domain.SuspensionStatus] {
	return New(domain.SuspensionTransitions)
}

// Apply checks if action is valid from current and returns the destination.
// Self-transitions are valid. Returns a *domain.TransitionError otherwise.
func (v *Validator[S]) Apply(ctx context.Context, current S, action domain.Action) (S, error) {
	machine := loopfsm.NewFSM(string(current), v.events, nil)

	if err := machine.Event(ctx, string(action)); err != nil {
		// looplab/fsm reports a self-transition as NoTransitionError; the
		// event was still permitted from this state.
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return current, nil
		}
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) {
			return "", &domain.TransitionError{
				Action:  action,
				Current: string(current),
			}
		}
		return "", err
	}

	return S(machine.Current()), nil
}
