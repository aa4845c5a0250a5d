package bridge

// State is the lifecycle state of a bridge.
type State int

const (
	// StateSetup: human leg connected, context loading, agent connecting.
	// Inbound audio is queued.
	StateSetup State = iota
	// StateActive: agent configured, audio flows both ways.
	StateActive
	// StateDraining: the interview is ending; the agent may finish speaking.
	StateDraining
	// StateClosed: both legs released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Kind distinguishes the human transport.
type Kind string

const (
	KindTelephony Kind = "telephony"
	KindBrowser   Kind = "browser"
)
