package runner

// State is a step of the run loop.
type State string

// Run loop states. DONE and FAILED are terminal.
const (
	StateAwaitingModel State = "AWAITING_MODEL"
	StateExecutingTool State = "EXECUTING_TOOL"
	StateHandingOff    State = "HANDING_OFF"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

func (s State) String() string { return string(s) }

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }
