package model

// MiningState describes what the current caller may do right now for a given
// node. It is derived, never stored, and never itself transitions.
type MiningState string

const (
	StateNoLocation MiningState = "NO_LOCATION"
	StateCancelled  MiningState = "CANCELLED"
	StateCompleted  MiningState = "COMPLETED"
	StatePending    MiningState = "PENDING"
	StateNodeClosed MiningState = "NODE_CLOSED"
	StateNodeFull   MiningState = "NODE_FULL"
	StateTooFar     MiningState = "TOO_FAR"
	StateEligible   MiningState = "ELIGIBLE"

	// StateTune is the tutorial-flow alias for Eligible: in range, ready to act.
	StateTune = StateEligible
)

// stateMessages maps every state to its feedback copy. One entry per state;
// Message falls back loudly if a state is ever added without copy.
var stateMessages = map[MiningState]string{
	StateNoLocation: "Enable location services to interact with this node.",
	StateCancelled:  "Your session at this node was cancelled and cannot be restarted.",
	StateCompleted:  "You already completed a session at this node.",
	StatePending:    "Session in progress. The countdown pauses while you are out of range and resumes when you return.",
	StateNodeClosed: "This node is closed for mining.",
	StateNodeFull:   "This node has reached its miner capacity.",
	StateTooFar:     "You are too far from this node. Move closer to start mining.",
	StateEligible:   "You are in range. Start a session to begin mining.",
}

// Message returns the user-facing copy for the state.
func (s MiningState) Message() string {
	if msg, ok := stateMessages[s]; ok {
		return msg
	}
	return "Unknown mining state."
}

// CanStart reports whether the state permits starting a new session.
func (s MiningState) CanStart() bool {
	return s == StateEligible
}
