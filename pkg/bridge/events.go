package bridge

import "time"

// EventType classifies status events.
type EventType string

const (
	EventState                EventType = "state"
	EventTranscript           EventType = "transcript"
	EventUserStartedSpeaking  EventType = "user_started_speaking"
	EventAgentThinking        EventType = "agent_thinking"
	EventAgentStartedSpeaking EventType = "agent_started_speaking"
	EventAgentAudioDone       EventType = "agent_audio_done"
	EventFunctionCall         EventType = "function_call"
	EventError                EventType = "error"
)

// Event is a status notification about one bridge. It goes to the human leg
// (browser only) and to the status feed.
type Event struct {
	Type      EventType `json:"type"`
	BridgeID  string    `json:"bridge_id"`
	SessionID string    `json:"session_id,omitempty"`
	State     string    `json:"state,omitempty"`
	Role      string    `json:"role,omitempty"`
	Text      string    `json:"text,omitempty"`
	Name      string    `json:"name,omitempty"`
	Time      time.Time `json:"time"`
}

// Info is a snapshot of a bridge for diagnostics.
type Info struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	SessionID     string    `json:"session_id"`
	StreamID      string    `json:"stream_id,omitempty"`
	State         string    `json:"state"`
	AgentState    string    `json:"agent_state"`
	StartedAt     time.Time `json:"started_at"`
	PendingFrames int       `json:"pending_frames"`
	InFlightCalls int       `json:"in_flight_calls"`
	DroppedFrames int64     `json:"dropped_frames"`
}
