package conversation

// EventKind identifies an input to the connection state machine.
type EventKind int

const (
	// EventDial: Connect was called.
	EventDial EventKind = iota
	// EventOpened: the handshake succeeded.
	EventOpened
	// EventMessage: a JSON message arrived.
	EventMessage
	// EventAudio: a binary frame arrived.
	EventAudio
	// EventFailed: dialing or reading failed.
	EventFailed
	// EventClosed: the socket closed cleanly or Close was called.
	EventClosed
)

// Event is one input to Machine.Handle.
type Event struct {
	Kind    EventKind
	Message *ServerMessage
	Audio   []byte
	Err     error
}

// EffectKind identifies an action the connection must perform.
type EffectKind int

const (
	EffectSendSettings EffectKind = iota
	EffectConfigured
	EffectAudio
	EffectConversationText
	EffectFunctionCalls
	EffectStatus
	EffectError
	EffectClose
)

// Effect is one output of Machine.Handle.
type Effect struct {
	Kind   EffectKind
	Audio  []byte
	Text   ConversationText
	Calls  []FunctionCall
	Status Status
	Err    error
}

// Machine is the agent connection state machine. It holds no I/O; the
// caller feeds it events and executes the returned effects in order.
// Not safe for concurrent use.
type Machine struct {
	state State
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Handle applies ev and returns the effects to execute.
func (m *Machine) Handle(ev Event) []Effect {
	if m.state.Terminal() {
		return nil
	}

	switch ev.Kind {
	case EventDial:
		if m.state == StateIdle {
			m.state = StateConnecting
		}
		return nil

	case EventOpened:
		if m.state != StateConnecting {
			return nil
		}
		m.state = StateOpen
		return []Effect{{Kind: EffectSendSettings}}

	case EventFailed:
		m.state = StateErrored
		return []Effect{{Kind: EffectError, Err: ev.Err}, {Kind: EffectClose}}

	case EventClosed:
		m.state = StateClosed
		return []Effect{{Kind: EffectClose}}

	case EventAudio:
		if !m.state.Live() {
			return nil
		}
		return []Effect{{Kind: EffectAudio, Audio: ev.Audio}}

	case EventMessage:
		if !m.state.Live() || ev.Message == nil {
			return nil
		}
		return m.handleMessage(ev.Message)
	}

	return nil
}

func (m *Machine) handleMessage(msg *ServerMessage) []Effect {
	switch msg.Type {
	case MsgSettingsApplied:
		if m.state != StateOpen {
			return nil
		}
		m.state = StateConfigured
		return []Effect{{Kind: EffectConfigured}}

	case MsgConversationText:
		return []Effect{{
			Kind: EffectConversationText,
			Text: ConversationText{Role: msg.Role, Content: msg.Content},
		}}

	case MsgFunctionCallRequest:
		if len(msg.Functions) == 0 {
			return nil
		}
		return []Effect{{Kind: EffectFunctionCalls, Calls: msg.Functions}}

	case MsgUserStartedSpeaking:
		return []Effect{{Kind: EffectStatus, Status: StatusUserStartedSpeaking}}
	case MsgAgentThinking:
		return []Effect{{Kind: EffectStatus, Status: StatusAgentThinking}}
	case MsgAgentStartedSpeaking:
		return []Effect{{Kind: EffectStatus, Status: StatusAgentStartedSpeaking}}
	case MsgAgentAudioDone:
		return []Effect{{Kind: EffectStatus, Status: StatusAgentAudioDone}}

	case MsgError:
		// Logged by the caller; a Close follows if the service gives up.
		return []Effect{{Kind: EffectError, Err: NewAPIError(msg.Code, msg.Description)}}
	case MsgWarning:
		return []Effect{{Kind: EffectError, Err: &APIError{Code: msg.Code, Description: msg.Description, Warning: true}}}
	}

	// Welcome and anything unknown.
	return nil
}
