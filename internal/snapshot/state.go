package snapshot

// State is a step of the run state machine.
type State string

const (
	StateIdle            State = "Idle"
	StateBackendResolved State = "BackendResolved"
	StateInitialized     State = "Initialized"
	StateEnumerated      State = "Enumerated"
	StateWriting         State = "Writing"
	StateFinalized       State = "Finalized"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// Stage names used in failures, metrics and logs.
const (
	StageResolve    = "resolve"
	StageLock       = "lock"
	StageInitialize = "initialize"
	StageEnumerate  = "enumerate"
	StageWrite      = "write"
	StageFinalize   = "finalize"
)

// next lists the only forward transition out of each non-terminal state.
var next = map[State]State{
	StateIdle:            StateBackendResolved,
	StateBackendResolved: StateInitialized,
	StateInitialized:     StateEnumerated,
	StateEnumerated:      StateWriting,
	StateWriting:         StateFinalized,
	StateFinalized:       StateDone,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}
