package conversation

import "time"

// State is the lifecycle of one agent connection.
type State int

const (
	// StateIdle means Connect was not called yet.
	StateIdle State = iota
	// StateConnecting means the socket is being dialed.
	StateConnecting
	// StateOpen means the socket is up and Settings were sent.
	StateOpen
	// StateConfigured means the agent accepted the Settings.
	StateConfigured
	// StateClosed is terminal.
	StateClosed
	// StateErrored is terminal.
	StateErrored
)

// String returns a human-readable connection state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateConfigured:
		return "configured"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events are processed in this state.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// Live reports whether audio may be sent in this state.
func (s State) Live() bool {
	return s == StateOpen || s == StateConfigured
}

// ConversationText is one line of the transcript.
type ConversationText struct {
	// Role is "user" or "assistant".
	Role    string
	Content string
}

// FunctionCall is one entry of a function call request.
type FunctionCall struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	ClientSide bool   `json:"client_side"`
}

// FunctionCallResponse answers a FunctionCall by id.
type FunctionCallResponse struct {
	ID      string
	Name    string
	Content string
}

// Status is a turn-taking signal. It has no control-flow effect on the relay.
type Status string

const (
	StatusUserStartedSpeaking  Status = "user_started_speaking"
	StatusAgentThinking        Status = "agent_thinking"
	StatusAgentStartedSpeaking Status = "agent_started_speaking"
	StatusAgentAudioDone       Status = "agent_audio_done"
)

// Metrics tracks connection and usage statistics.
type Metrics struct {
	// ConnectionTime is when the connection was established.
	ConnectionTime time.Time

	// MessagesSent is the total messages sent.
	MessagesSent int64

	// MessagesReceived is the total messages received.
	MessagesReceived int64

	// AudioBytesSent is the total audio bytes sent.
	AudioBytesSent int64

	// AudioBytesReceived is the total audio bytes received.
	AudioBytesReceived int64
}
