package domain

// Action is something that may move a record from one state to another.
type Action string

const (
	// Session actions. Only ActionComplete leaves the live state; the others
	// are self-transitions that exist so terminated sessions reject them.
	ActionRecordEvent Action = "record_event"
	ActionExtend      Action = "extend"
	ActionHintReason  Action = "hint_reason"
	ActionComplete    Action = "complete"

	// Suspension request actions.
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionClaim   Action = "claim"
	ActionExecute Action = "execute"
	ActionRelease Action = "release"
)

// Transition defines a valid state change: an action moves a record from Src to Dst.
type Transition[S ~string] struct {
	Action Action
	Src    S
	Dst    S
}

// Destination looks up the target state for action from current in table.
func Destination[S ~string](table []Transition[S], current S, action Action) (S, bool) {
	for _, t := range table {
		if t.Action == action && t.Src == current {
			return t.Dst, true
		}
	}
	return "", false
}
