package telephony

import "sync"

// State is the lifecycle of one media stream.
type State int

const (
	// StateAwaitingStart means the socket is open but no start frame arrived yet.
	StateAwaitingStart State = iota
	// StateStreaming means the stream sid is known and audio flows.
	StateStreaming
	// StateStopped is terminal.
	StateStopped
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting_start"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EffectKind says what the caller must do in response to a frame.
type EffectKind int

const (
	// EffectStarted: the stream sid (and possibly a session id) is now known.
	EffectStarted EffectKind = iota
	// EffectAudio: forward Audio to the bridge.
	EffectAudio
	// EffectStop: tear down the bridge.
	EffectStop
)

// Effect is one side effect produced by Stream.Handle.
type Effect struct {
	Kind      EffectKind
	StreamSid string
	CallSid   string
	SessionID string
	Audio     []byte
}

// SessionParam is the custom stream parameter carrying the interview session id.
const SessionParam = "sessionId"

// Stream tracks one inbound media stream. Handle is called from the socket
// read loop; MediaFrame may be called concurrently from the agent side.
type Stream struct {
	mu        sync.RWMutex
	state     State
	streamSid string
	callSid   string
}

// NewStream returns a stream awaiting its start frame.
func NewStream() *Stream {
	return &Stream{state: StateAwaitingStart}
}

// State returns the current state.
func (s *Stream) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// StreamSid returns the captured stream sid, or "" before start.
func (s *Stream) StreamSid() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamSid
}

// Handle applies one inbound frame and returns the effects to execute.
// A *PayloadError means the frame was dropped and nothing else changed.
func (s *Stream) Handle(f *Frame) ([]Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil, ErrStreamStopped
	}

	switch f.Event {
	case EventStart:
		if s.state != StateAwaitingStart || f.Start == nil {
			return nil, nil
		}
		s.state = StateStreaming
		s.streamSid = f.Start.StreamSid
		if s.streamSid == "" {
			s.streamSid = f.StreamSid
		}
		s.callSid = f.Start.CallSid
		return []Effect{{
			Kind:      EffectStarted,
			StreamSid: s.streamSid,
			CallSid:   s.callSid,
			SessionID: f.Start.CustomParameters[SessionParam],
		}}, nil

	case EventMedia:
		if f.Media == nil {
			return nil, nil
		}
		audio, err := f.Media.DecodePayload()
		if err != nil {
			return nil, err
		}
		return []Effect{{Kind: EffectAudio, StreamSid: s.streamSid, Audio: audio}}, nil

	case EventStop:
		s.state = StateStopped
		return []Effect{{Kind: EffectStop, StreamSid: s.streamSid, CallSid: s.callSid}}, nil

	default:
		// connected, mark, dtmf and anything newer carry nothing for the bridge.
		return nil, nil
	}
}

// MediaFrame encodes audio for playback on this stream.
func (s *Stream) MediaFrame(audio []byte) ([]byte, error) {
	s.mu.RLock()
	sid, state := s.streamSid, s.state
	s.mu.RUnlock()

	switch {
	case state == StateStopped:
		return nil, ErrStreamStopped
	case sid == "":
		return nil, ErrStreamNotStarted
	}
	return NewMediaFrame(sid, audio)
}
