package ingest

// State is a position in the per-item state machine.
type State string

const (
	StatePending           State = "pending"
	StateResolvingMetadata State = "resolving_metadata"
	StateCheckingExistence State = "checking_existence"
	StateFetching          State = "fetching"
	StateConverting        State = "converting"
	StateUploading         State = "uploading"
	StateCleaningUp        State = "cleaning_up"
	StateSkipped           State = "skipped"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateSkipped, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

var transitions = map[State][]State{
	StatePending:           {StateResolvingMetadata},
	StateResolvingMetadata: {StateCheckingExistence},
	StateCheckingExistence: {StateSkipped, StateFetching},
	StateFetching:          {StateConverting},
	StateConverting:        {StateUploading},
	StateUploading:         {StateCleaningUp},
	StateCleaningUp:        {StateSucceeded},
}

// CanTransition reports whether to is a legal successor of from. Failed is
// reachable from every non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
