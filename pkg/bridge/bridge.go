// Package bridge pairs one human audio leg with one agent connection and
// coordinates their lifecycles.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-interview-relay/pkg/audioio"
	"github.com/teslashibe/go-interview-relay/pkg/backend"
	"github.com/teslashibe/go-interview-relay/pkg/conversation"
	"github.com/teslashibe/go-interview-relay/pkg/interview"
	"github.com/teslashibe/go-interview-relay/pkg/tools"
)

// Defaults.
const (
	DefaultGracePeriod       = 5 * time.Second
	DefaultPendingAudioLimit = 1500

	// maxRecordingBytes is 30 minutes of 16 kHz PCM16 mono.
	maxRecordingBytes = 30 * 60 * 16000 * 2
)

// HumanLeg is the caller side of a bridge: a telephony stream or a browser socket.
type HumanLeg interface {
	SendAudio(audio []byte) error
	SendEvent(ev Event) error
	Close() error
}

// ContextLoader resolves session configuration.
type ContextLoader interface {
	Load(ctx context.Context, sessionID string) interview.Context
}

// Backend is the backend surface a bridge uses.
type Backend interface {
	tools.Backend
	LogTranscript(ctx context.Context, sessionID string, entry backend.LogEntry) error
}

// Notifier runs best-effort backend calls.
type Notifier interface {
	tools.Notifier
	Release(key string)
}

// RecordingSink stores a finished recording.
type RecordingSink interface {
	Upload(ctx context.Context, sessionID, bridgeID string, wav []byte) error
}

// Recorder observes bridge activity for metrics.
type Recorder interface {
	tools.Recorder
	BridgeStarted(kind string)
	BridgeEnded(kind, reason string, d time.Duration)
	AudioFrames(direction string, bytes int)
	AudioDropped(direction, cause string)
	TranscriptLine(role string)
}

// AudioPlan fixes the encodings on each side of the bridge.
type AudioPlan struct {
	HumanIn  audioio.Format
	AgentIn  audioio.Format
	AgentOut audioio.Format
	HumanOut audioio.Format
}

// AgentDefaults fill in settings the session context leaves empty.
type AgentDefaults struct {
	Language      string
	ThinkProvider string
	ThinkModel    string
	Voice         string
	STTModel      string
}

// Config holds everything needed to build a Bridge.
type Config struct {
	Kind     Kind
	Agent    conversation.Agent
	Human    HumanLeg
	Audio    AudioPlan
	Defaults AgentDefaults

	Loader   ContextLoader
	Backend  Backend
	Notifier Notifier
	Registry *Registry

	// Optional.
	Recording   RecordingSink
	Recorder    Recorder
	Clock       clockwork.Clock
	GracePeriod time.Duration
	PendingMax  int
	OnEvent     func(ev Event)
	Logger      *slog.Logger
}

// Bridge couples one human leg with one agent connection.
type Bridge struct {
	id        string
	kind      Kind
	agent     conversation.Agent
	human     HumanLeg
	plan      AudioPlan
	defaults  AgentDefaults
	loader    ContextLoader
	backend   Backend
	notifier  Notifier
	registry  *Registry
	recording RecordingSink
	recorder  Recorder
	clock     clockwork.Clock
	grace     time.Duration
	onEvent   func(ev Event)
	logger    *slog.Logger
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// inMu serializes inbound audio with activation so queued frames are
	// flushed before any later frame.
	inMu       sync.Mutex
	pending    [][]byte
	pendingMax int
	record     []byte

	mu         sync.Mutex
	state      State
	started    bool
	sessionID  string
	streamID   string
	ictx       interview.Context
	dispatcher *tools.Dispatcher
	inflight   map[string]struct{}
	drainTimer clockwork.Timer
	endReason  string

	agentOnce sync.Once
	humanOnce sync.Once
	done      chan struct{}

	drops audioio.DropCounter
}

// New creates a bridge in setup state and registers it.
func New(cfg Config) (*Bridge, error) {
	if cfg.Agent == nil || cfg.Human == nil {
		return nil, ErrMissingLeg
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	pendingMax := cfg.PendingMax
	if pendingMax <= 0 {
		pendingMax = DefaultPendingAudioLimit
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:         id,
		kind:       cfg.Kind,
		agent:      cfg.Agent,
		human:      cfg.Human,
		plan:       cfg.Audio,
		defaults:   cfg.Defaults,
		loader:     cfg.Loader,
		backend:    cfg.Backend,
		notifier:   cfg.Notifier,
		registry:   cfg.Registry,
		recording:  cfg.Recording,
		recorder:   recorder,
		clock:      clock,
		grace:      grace,
		onEvent:    cfg.OnEvent,
		logger:     logger.With("component", "bridge", "bridge_id", id, "kind", cfg.Kind),
		startedAt:  clock.Now(),
		ctx:        ctx,
		cancel:     cancel,
		pendingMax: pendingMax,
		inflight:   make(map[string]struct{}),
		done:       make(chan struct{}),
	}

	b.agent.OnConfigured(b.activate)
	b.agent.OnAudio(b.handleAgentAudio)
	b.agent.OnConversationText(b.handleConversationText)
	b.agent.OnFunctionCallRequest(b.handleFunctionCalls)
	b.agent.OnStatus(b.handleAgentStatus)
	b.agent.OnError(b.handleAgentError)
	b.agent.OnClose(func() { b.Shutdown("agent closed") })

	if b.registry != nil {
		b.registry.Add(b)
	}
	b.recorder.BridgeStarted(string(b.kind))
	b.logger.Info("bridge created")

	return b, nil
}

// ID returns the bridge id.
func (b *Bridge) ID() string { return b.id }

// Done is closed once the bridge has shut down.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// State returns the current bridge state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SessionID returns the session id, empty until Start.
func (b *Bridge) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// SetStreamID records the provider stream id (telephony only).
func (b *Bridge) SetStreamID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamID = id
}

// Context returns the loaded interview context.
func (b *Bridge) Context() interview.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ictx
}

// Drops returns how many inbound frames were dropped.
func (b *Bridge) Drops() int64 { return b.drops.Count() }

// Start loads the session context, configures the agent and connects it.
// Inbound audio keeps queueing while Start runs.
func (b *Bridge) Start(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	if b.state == StateClosed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.started = true
	b.sessionID = sessionID
	b.mu.Unlock()

	b.logger.Info("bridge starting", "session_id", sessionID)

	ictx := interview.Default(sessionID)
	if b.loader != nil {
		ictx = b.loader.Load(ctx, sessionID)
	}

	dispatcher := tools.NewDispatcher(tools.InterviewTools(tools.Config{
		SessionID: sessionID,
		QueueKey:  b.id,
		Backend:   b.backend,
		Notifier:  b.notifier,
		OnEnd: func(reason, summary string) {
			b.logger.Info("interview ended by agent", "reason", reason, "summary", summary)
			b.Drain(reason)
		},
		Logger: b.logger,
	}), b.recorder, b.logger)

	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.ictx = ictx
	b.dispatcher = dispatcher
	b.mu.Unlock()

	b.agent.Configure(b.settings(ictx, dispatcher))

	if err := b.agent.Connect(ctx); err != nil {
		b.logger.Error("agent connect failed", "error", err)
		b.emit(Event{Type: EventError, Text: "agent connection failed"})
		b.Shutdown("agent connect failed")
		return err
	}
	b.emit(Event{Type: EventState, State: "connecting"})
	return nil
}

func (b *Bridge) settings(c interview.Context, d *tools.Dispatcher) conversation.Settings {
	model := firstNonEmpty(c.STTModel, b.defaults.STTModel)
	voice := firstNonEmpty(c.VoiceID, b.defaults.Voice)

	return conversation.NewSettings(conversation.SettingsOptions{
		Input:    b.plan.AgentIn,
		Output:   b.plan.AgentOut,
		Language: b.defaults.Language,
		Greeting: interview.Greeting(c),
		Prompt:   interview.SystemPrompt(c),
		Listen: conversation.NewListenConfig(model, conversation.ListenOptions{
			Endpointing:    c.STTConfig.Endpointing,
			UtteranceEndMs: c.STTConfig.UtteranceEndMs,
			SmartFormat:    c.STTConfig.SmartFormat,
			Keyterms:       c.STTConfig.Keywords,
		}),
		Think: conversation.ThinkProvider{
			Type:  b.defaults.ThinkProvider,
			Model: b.defaults.ThinkModel,
		},
		Voice:     voice,
		Functions: d.Declarations(),
	})
}

// HandleHumanAudio accepts one inbound frame in the human leg's encoding.
func (b *Bridge) HandleHumanAudio(frame []byte) {
	b.inMu.Lock()
	defer b.inMu.Unlock()

	state := b.State()
	if state == StateClosed {
		return
	}

	audio, err := audioio.Convert(frame, b.plan.HumanIn, b.plan.AgentIn)
	if err != nil {
		b.dropInbound("decode", err)
		return
	}
	b.captureRecording(frame)

	if state == StateSetup {
		if len(b.pending) >= b.pendingMax {
			// Oldest audio goes first.
			copy(b.pending, b.pending[1:])
			b.pending = b.pending[:len(b.pending)-1]
			b.drops.Inc()
			b.recorder.AudioDropped("inbound", "pending_full")
		}
		b.pending = append(b.pending, audio)
		return
	}

	b.forward(audio)
}

// HumanDecodeFailed counts a frame the human transport could not decode.
func (b *Bridge) HumanDecodeFailed(err error) {
	b.dropInbound("decode", err)
}

func (b *Bridge) dropInbound(cause string, err error) {
	n := b.drops.Inc()
	b.recorder.AudioDropped("inbound", cause)
	b.logger.Warn("dropping inbound frame", "cause", cause, "error", err, "dropped", n)
}

func (b *Bridge) forward(audio []byte) {
	if err := b.agent.SendAudio(audio); err != nil {
		if !errors.Is(err, conversation.ErrNotConnected) {
			b.logger.Warn("send to agent failed", "error", err)
		}
		b.recorder.AudioDropped("inbound", "send")
		return
	}
	b.recorder.AudioFrames("inbound", len(audio))
}

// activate moves setup to active and flushes queued audio in order.
func (b *Bridge) activate() {
	b.inMu.Lock()
	defer b.inMu.Unlock()

	b.mu.Lock()
	if b.state != StateSetup {
		b.mu.Unlock()
		return
	}
	b.state = StateActive
	b.mu.Unlock()

	pending := b.pending
	b.pending = nil
	for _, audio := range pending {
		b.forward(audio)
	}

	b.logger.Info("bridge active", "flushed_frames", len(pending))
	b.emit(Event{Type: EventState, State: StateActive.String()})
}

func (b *Bridge) handleAgentAudio(audio []byte) {
	if b.State() == StateClosed {
		return
	}

	out, err := audioio.Convert(audio, b.plan.AgentOut, b.plan.HumanOut)
	if err != nil {
		b.recorder.AudioDropped("outbound", "decode")
		b.logger.Warn("dropping agent frame", "error", err)
		return
	}
	if err := b.human.SendAudio(out); err != nil {
		b.recorder.AudioDropped("outbound", "send")
		b.logger.Debug("send to human failed", "error", err)
		return
	}
	b.recorder.AudioFrames("outbound", len(out))
}

func (b *Bridge) handleConversationText(text conversation.ConversationText) {
	b.recorder.TranscriptLine(text.Role)
	b.emit(Event{Type: EventTranscript, Role: text.Role, Text: text.Content})

	b.mu.Lock()
	sessionID, closed := b.sessionID, b.state == StateClosed
	b.mu.Unlock()
	if b.backend == nil || b.notifier == nil || sessionID == "" || closed {
		return
	}

	entry := backend.LogEntry{
		Speaker: speaker(text.Role),
		Message: text.Content,
		Metadata: map[string]any{
			"bridge_id": b.id,
			"role":      text.Role,
		},
	}
	// The bridge's own queue keeps transcript lines in emission order.
	err := b.notifier.Enqueue(b.id, "log_transcript", func(ctx context.Context) error {
		return b.backend.LogTranscript(ctx, sessionID, entry)
	})
	if err != nil {
		b.logger.Debug("transcript line not queued", "error", err)
	}
}

func (b *Bridge) handleFunctionCalls(calls []conversation.FunctionCall) {
	b.mu.Lock()
	dispatcher := b.dispatcher
	for _, c := range calls {
		b.inflight[c.ID] = struct{}{}
	}
	b.mu.Unlock()

	for _, call := range calls {
		b.emit(Event{Type: EventFunctionCall, Name: call.Name})

		go func(call conversation.FunctionCall) {
			defer func() {
				b.mu.Lock()
				delete(b.inflight, call.ID)
				b.mu.Unlock()
			}()

			var resp conversation.FunctionCallResponse
			if dispatcher == nil {
				resp = conversation.FunctionCallResponse{ID: call.ID, Name: call.Name, Content: "The interview is still starting."}
			} else {
				resp = dispatcher.Dispatch(b.ctx, call)
			}
			if err := b.agent.RespondFunctionCall(resp); err != nil {
				b.logger.Warn("function response not delivered", "name", call.Name, "call_id", call.ID, "error", err)
			}
		}(call)
	}
}

func (b *Bridge) handleAgentStatus(status conversation.Status) {
	var t EventType
	switch status {
	case conversation.StatusUserStartedSpeaking:
		t = EventUserStartedSpeaking
	case conversation.StatusAgentThinking:
		t = EventAgentThinking
	case conversation.StatusAgentStartedSpeaking:
		t = EventAgentStartedSpeaking
	case conversation.StatusAgentAudioDone:
		t = EventAgentAudioDone
	default:
		return
	}
	b.emit(Event{Type: t})
}

func (b *Bridge) handleAgentError(err error) {
	var apiErr *conversation.APIError
	if errors.As(err, &apiErr) && apiErr.Warning {
		return
	}
	b.emit(Event{Type: EventError, Text: err.Error()})
}

// Drain starts the end-of-interview grace period. The agent may finish its
// last utterance; after GracePeriod both legs are closed.
func (b *Bridge) Drain(reason string) {
	b.mu.Lock()
	if b.state == StateDraining || b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateDraining
	b.endReason = reason
	b.drainTimer = b.clock.AfterFunc(b.grace, func() {
		b.Shutdown("drained: " + reason)
	})
	b.mu.Unlock()

	b.logger.Info("bridge draining", "reason", reason, "grace", b.grace)
	b.emit(Event{Type: EventState, State: StateDraining.String(), Text: reason})
}

// HumanClosed reports that the human leg went away.
func (b *Bridge) HumanClosed() {
	// The leg is already gone; don't close it again.
	b.humanOnce.Do(func() {})
	b.Shutdown("human closed")
}

// Shutdown closes both legs exactly once. Safe to call from any goroutine
// and from leg callbacks.
func (b *Bridge) Shutdown(reason string) {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateClosed
	timer := b.drainTimer
	b.drainTimer = nil
	sessionID := b.sessionID
	b.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	b.cancel()

	b.agentOnce.Do(func() {
		if err := b.agent.Close(); err != nil {
			b.logger.Debug("agent close", "error", err)
		}
	})
	b.humanOnce.Do(func() {
		if err := b.human.Close(); err != nil {
			b.logger.Debug("human close", "error", err)
		}
	})

	b.inMu.Lock()
	dropped := len(b.pending)
	b.pending = nil
	record := b.record
	b.record = nil
	b.inMu.Unlock()

	b.uploadRecording(sessionID, record)
	if b.notifier != nil {
		b.notifier.Release(b.id)
	}
	if b.registry != nil {
		b.registry.Remove(b.id)
	}

	b.recorder.BridgeEnded(string(b.kind), reason, b.clock.Now().Sub(b.startedAt))
	b.logger.Info("bridge closed",
		"reason", reason,
		"discarded_frames", dropped,
		"dropped_frames", b.drops.Count(),
	)
	b.emit(Event{Type: EventState, State: StateClosed.String(), Text: reason})
	close(b.done)
}

// Info returns a diagnostics snapshot.
func (b *Bridge) Info() Info {
	b.inMu.Lock()
	pending := len(b.pending)
	b.inMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	return Info{
		ID:            b.id,
		Kind:          b.kind,
		SessionID:     b.sessionID,
		StreamID:      b.streamID,
		State:         b.state.String(),
		AgentState:    b.agent.State().String(),
		StartedAt:     b.startedAt,
		PendingFrames: pending,
		InFlightCalls: len(b.inflight),
		DroppedFrames: b.drops.Count(),
	}
}

func (b *Bridge) captureRecording(frame []byte) {
	if b.recording == nil || len(b.record) >= maxRecordingBytes {
		return
	}
	pcm, err := audioio.Convert(frame, b.plan.HumanIn, audioio.PCM16k)
	if err != nil {
		return
	}
	b.record = append(b.record, pcm...)
}

func (b *Bridge) uploadRecording(sessionID string, pcm []byte) {
	if b.recording == nil || len(pcm) == 0 {
		return
	}
	wav, err := audioio.EncodeWAV(pcm, audioio.PCM16k.SampleRate, 1)
	if err != nil {
		b.logger.Warn("recording not encoded", "error", err)
		return
	}
	upload := func(ctx context.Context) error {
		return b.recording.Upload(ctx, sessionID, b.id, wav)
	}
	if b.notifier == nil {
		go func() {
			if err := upload(context.Background()); err != nil {
				b.logger.Warn("recording upload failed", "error", err)
			}
		}()
		return
	}
	if err := b.notifier.Go("upload_recording", upload); err != nil {
		b.logger.Warn("recording upload not scheduled", "error", err)
	}
}

func (b *Bridge) emit(ev Event) {
	ev.BridgeID = b.id
	if ev.SessionID == "" {
		ev.SessionID = b.SessionID()
	}
	ev.Time = b.clock.Now()

	if b.onEvent != nil {
		b.onEvent(ev)
	}
	if b.State() != StateClosed {
		if err := b.human.SendEvent(ev); err != nil {
			b.logger.Debug("status not delivered to human leg", "type", ev.Type, "error", err)
		}
	}
}

func speaker(role string) string {
	switch role {
	case "assistant", "agent":
		return "agent"
	case "user":
		return "candidate"
	default:
		return role
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type nopRecorder struct{}

func (nopRecorder) RecordFunctionCall(string, string) {}
func (nopRecorder) BridgeStarted(string) {}
func (nopRecorder) BridgeEnded(string, string, time.Duration) {}
func (nopRecorder) AudioFrames(string, int) {}
func (nopRecorder) AudioDropped(string, string) {}
func (nopRecorder) TranscriptLine(string) {}
