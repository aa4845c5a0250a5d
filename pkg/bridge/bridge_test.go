package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-interview-relay/pkg/audioio"
	"github.com/teslashibe/go-interview-relay/pkg/backend"
	"github.com/teslashibe/go-interview-relay/pkg/conversation"
	"github.com/teslashibe/go-interview-relay/pkg/interview"
	"github.com/teslashibe/go-interview-relay/pkg/tools"
)

type fakeHuman struct {
	mu     sync.Mutex
	audio  [][]byte
	events []Event
	closes int
}

func (h *fakeHuman) SendAudio(audio []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audio = append(h.audio, audio)
	return nil
}

func (h *fakeHuman) SendEvent(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func (h *fakeHuman) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *fakeHuman) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func (h *fakeHuman) Audio() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.audio...)
}

type staticLoader struct {
	ctx interview.Context
}

func (l staticLoader) Load(ctx context.Context, sessionID string) interview.Context {
	c := l.ctx
	c.SessionID = sessionID
	return c
}

type fakeBackend struct {
	mu    sync.Mutex
	lines []string
	ended []string
}

func (f *fakeBackend) AgentContext(ctx context.Context, query string) (string, error) {
	return "", nil
}

func (f *fakeBackend) UpdateProgress(ctx context.Context, sessionID string, p backend.Progress) error {
	return nil
}

func (f *fakeBackend) EndSession(ctx context.Context, sessionID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, reason)
	return nil
}

func (f *fakeBackend) LogTranscript(ctx context.Context, sessionID string, entry backend.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, entry.Speaker+": "+entry.Message)
	return nil
}

type fixture struct {
	bridge   *Bridge
	agent    *conversation.Mock
	human    *fakeHuman
	clock    *clockwork.FakeClock
	registry *Registry
	backend  *fakeBackend
	notifier *backend.Notifier
}

var telephonyPlan = AudioPlan{
	HumanIn:  audioio.Telephony,
	AgentIn:  audioio.Telephony,
	AgentOut: audioio.Telephony,
	HumanOut: audioio.Telephony,
}

var browserPlan = AudioPlan{
	HumanIn:  audioio.Browser,
	AgentIn:  audioio.PCM16k,
	AgentOut: audioio.PCM16k,
	HumanOut: audioio.PCM16k,
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		agent:    conversation.NewMock(),
		human:    &fakeHuman{},
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		registry: NewRegistry(),
		backend:  &fakeBackend{},
		notifier: backend.NewNotifier(),
	}
	cfg := Config{
		Kind:     KindTelephony,
		Agent:    f.agent,
		Human:    f.human,
		Audio:    telephonyPlan,
		Defaults: AgentDefaults{Language: "en", ThinkProvider: "open_ai", ThinkModel: "gpt-4o-mini", Voice: "aura-2-thalia-en", STTModel: "nova-3"},
		Loader:   staticLoader{ctx: interview.Default("")},
		Backend:  f.backend,
		Notifier: f.notifier,
		Registry: f.registry,
		Clock:    f.clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	f.bridge = b
	t.Cleanup(func() {
		b.Shutdown("test done")
		_ = f.notifier.Close(context.Background())
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.bridge.Start(context.Background(), "s1"))
}

func frame(i int) []byte {
	return []byte{byte(i), byte(i >> 8), 0x7f}
}

func TestPendingAudioFlushedInOrder(t *testing.T) {
	f := newFixture(t, nil)

	const n = 50
	for i := 0; i < n/2; i++ {
		f.bridge.HandleHumanAudio(frame(i))
	}
	f.start(t)
	for i := n / 2; i < n; i++ {
		f.bridge.HandleHumanAudio(frame(i))
	}

	assert.Empty(t, f.agent.Sent())
	assert.Equal(t, n, f.bridge.Info().PendingFrames)
	assert.Equal(t, StateSetup, f.bridge.State())

	f.agent.SimulateConfigured()
	assert.Equal(t, StateActive, f.bridge.State())

	f.bridge.HandleHumanAudio(frame(n))

	sent := f.agent.Sent()
	require.Len(t, sent, n+1)
	for i, got := range sent {
		assert.Equal(t, frame(i), got, "frame %d", i)
	}
	assert.Zero(t, f.bridge.Info().PendingFrames)
}

func TestPendingAudioEvictsOldest(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PendingMax = 3 })
	f.start(t)

	for i := 0; i < 5; i++ {
		f.bridge.HandleHumanAudio(frame(i))
	}
	f.agent.SimulateConfigured()

	assert.Equal(t, [][]byte{frame(2), frame(3), frame(4)}, f.agent.Sent())
	assert.Equal(t, int64(2), f.bridge.Drops())
}

func TestConcurrentActivation(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.bridge.HandleHumanAudio(frame(i))
		}
	}()
	f.agent.SimulateConfigured()
	wg.Wait()

	sent := f.agent.Sent()
	require.Len(t, sent, 200)
	for i, got := range sent {
		assert.Equal(t, frame(i), got)
	}
}

func TestTeardownHumanFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()
	require.Equal(t, 1, f.registry.Len())

	f.bridge.HumanClosed()
	f.bridge.HumanClosed()

	assert.Equal(t, 1, f.agent.Closes())
	assert.Equal(t, 0, f.human.Closes())
	assert.Equal(t, StateClosed, f.bridge.State())
	assert.Equal(t, 0, f.registry.Len())

	select {
	case <-f.bridge.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestTeardownAgentFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()

	f.agent.SimulateRemoteClose()
	f.bridge.Shutdown("again")
	f.bridge.HumanClosed()

	assert.Equal(t, 1, f.human.Closes())
	assert.Equal(t, StateClosed, f.bridge.State())
	assert.LessOrEqual(t, f.agent.Closes(), 1)
}

func TestTeardownClearsPending(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.bridge.HandleHumanAudio(frame(1))
	f.bridge.HumanClosed()

	assert.Zero(t, f.bridge.Info().PendingFrames)
	f.bridge.HandleHumanAudio(frame(2))
	assert.Empty(t, f.agent.Sent())
}

func TestEndInterviewGracePeriod(t *testing.T) {
	const grace = 5 * time.Second
	f := newFixture(t, func(c *Config) { c.GracePeriod = grace })
	f.start(t)
	f.agent.SimulateConfigured()

	f.agent.SimulateFunctionCalls(conversation.FunctionCall{
		ID:        "end-1",
		Name:      tools.EndInterview,
		Arguments: `{"reason":"completed","summary":"done"}`,
	})

	require.Eventually(t, func() bool {
		return len(f.agent.ResponsesSent()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "end-1", f.agent.ResponsesSent()[0].ID)
	assert.Equal(t, StateDraining, f.bridge.State())

	drainStart := f.clock.Now()
	waitTimers(t, f.clock, 1)

	f.clock.Advance(grace - time.Millisecond)
	assert.Equal(t, StateDraining, f.bridge.State())
	assert.Equal(t, 0, f.agent.Closes())
	assert.Equal(t, 0, f.human.Closes())

	f.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool {
		return f.bridge.State() == StateClosed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.agent.Closes())
	assert.Equal(t, 1, f.human.Closes())

	elapsed := f.clock.Now().Sub(drainStart)
	assert.GreaterOrEqual(t, elapsed, grace)
	assert.LessOrEqual(t, elapsed, grace+500*time.Millisecond)

	require.Eventually(t, func() bool {
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		return len(f.backend.ended) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDrainThenHumanCloseStopsTimer(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()

	f.bridge.Drain("candidate left")
	f.bridge.Drain("twice")
	waitTimers(t, f.clock, 1)

	f.bridge.HumanClosed()
	waitTimers(t, f.clock, 0)
	assert.Equal(t, 1, f.agent.Closes())

	// The stopped timer never fires.
	f.clock.Advance(DefaultGracePeriod)
	assert.Equal(t, 1, f.agent.Closes())
}

// waitTimers blocks until exactly n timers are pending on clock.
func waitTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestAudioDuringDrainStillForwarded(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()
	f.bridge.Drain("completed")

	f.bridge.HandleHumanAudio(frame(7))
	f.agent.SimulateAudio([]byte{1, 2, 3})

	assert.Len(t, f.agent.Sent(), 1)
	assert.Len(t, f.human.Audio(), 1)
}

func float32Frame(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestBrowserAudioConversion(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Kind = KindBrowser
		c.Audio = browserPlan
	})
	f.start(t)
	f.agent.SimulateConfigured()

	f.bridge.HandleHumanAudio(float32Frame(0, 1, -1, 1.5))
	sent := f.agent.Sent()
	require.Len(t, sent, 1)
	samples, err := audioio.DecodePCM16(sent[0])
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 32767, -32768, 32767}, samples)

	t.Run("malformed frame is dropped and counted", func(t *testing.T) {
		f.bridge.HandleHumanAudio([]byte{1, 2, 3})
		assert.Equal(t, int64(1), f.bridge.Drops())
		assert.Len(t, f.agent.Sent(), 1)
		assert.Equal(t, StateActive, f.bridge.State())
	})
}

func TestAgentAudioToHuman(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()

	f.agent.SimulateAudio([]byte{0xff, 0x7f})
	assert.Equal(t, [][]byte{{0xff, 0x7f}}, f.human.Audio())
}

func TestTranscriptLinesOrdered(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()

	for i := 0; i < 20; i++ {
		role := "assistant"
		if i%2 == 1 {
			role = "user"
		}
		f.agent.SimulateConversationText(role, string(rune('a'+i)))
	}

	require.NoError(t, f.notifier.Close(context.Background()))

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	require.Len(t, f.backend.lines, 20)
	assert.Equal(t, "agent: a", f.backend.lines[0])
	assert.Equal(t, "candidate: b", f.backend.lines[1])
	assert.Equal(t, "candidate: t", f.backend.lines[19])
}

func TestTranscriptAfterCloseDropped(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()
	f.agent.SimulateConversationText("assistant", "hello")
	f.bridge.HumanClosed()

	f.agent.SimulateConversationText("user", "late line")
	assert.Equal(t, 0, f.notifier.Pending())

	require.NoError(t, f.notifier.Close(context.Background()))
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	assert.Equal(t, []string{"agent: hello"}, f.backend.lines)
}

func TestReconnectKeepsSeparateQueues(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()

	// A second bridge for the same interview, as after a caller reconnects.
	agent2 := conversation.NewMock()
	b2, err := New(Config{
		Kind:     KindTelephony,
		Agent:    agent2,
		Human:    &fakeHuman{},
		Audio:    telephonyPlan,
		Loader:   staticLoader{ctx: interview.Default("")},
		Backend:  f.backend,
		Notifier: f.notifier,
		Registry: f.registry,
		Clock:    f.clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b2.Shutdown("test done") })
	require.NoError(t, b2.Start(context.Background(), "s1"))
	agent2.SimulateConfigured()

	f.agent.SimulateConversationText("assistant", "old")
	agent2.SimulateConversationText("assistant", "new 1")
	assert.Equal(t, 2, f.notifier.Pending())

	f.bridge.HumanClosed()
	assert.Equal(t, 1, f.notifier.Pending())

	agent2.SimulateConversationText("user", "new 2")
	assert.Equal(t, 1, f.notifier.Pending())

	require.NoError(t, f.notifier.Close(context.Background()))
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	assert.Len(t, f.backend.lines, 3)
	assert.Contains(t, f.backend.lines, "candidate: new 2")
}

func TestUnknownFunctionAnswered(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.agent.SimulateConfigured()

	f.agent.SimulateFunctionCalls(conversation.FunctionCall{ID: "x", Name: "foo", Arguments: "{}"})
	require.Eventually(t, func() bool {
		return len(f.agent.ResponsesSent()) == 1
	}, time.Second, 5*time.Millisecond)

	resp := f.agent.ResponsesSent()[0]
	assert.Equal(t, "x", resp.ID)
	assert.Equal(t, "Function foo is not implemented.", resp.Content)
	assert.Eventually(t, func() bool { return f.bridge.Info().InFlightCalls == 0 }, time.Second, 5*time.Millisecond)
}

func TestSettingsFromContext(t *testing.T) {
	ictx := interview.Default("")
	ictx.STTModel = "flux-general-en"
	ictx.CompanyName = "Acme"
	ictx.InterviewType = interview.TypeTechnical
	ictx.DurationMinutes = 20

	f := newFixture(t, func(c *Config) { c.Loader = staticLoader{ctx: ictx} })
	f.start(t)

	require.NotNil(t, f.agent.Settings)
	s := f.agent.Settings
	_, isFlux := s.Agent.Listen.Provider.(conversation.FluxListenConfig)
	assert.True(t, isFlux)
	assert.Equal(t, "aura-2-thalia-en", s.Agent.Speak.Provider.Model)
	assert.Contains(t, s.Agent.Greeting, "Acme")
	assert.Contains(t, s.Agent.Think.Prompt, "technical")
	assert.Equal(t, "mulaw", s.Audio.Input.Encoding)
	assert.Len(t, s.Agent.Think.Functions, 4)
	assert.Equal(t, "s1", f.bridge.Context().SessionID)
}

func TestStartTwice(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	assert.ErrorIs(t, f.bridge.Start(context.Background(), "s1"), ErrAlreadyStarted)
}

func TestAgentConnectFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.agent.ConnectFunc = func(ctx context.Context) error { return errors.New("dial refused") }

	err := f.bridge.Start(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, StateClosed, f.bridge.State())
	assert.Equal(t, 1, f.human.Closes())
}

func TestEventsReachObserver(t *testing.T) {
	var mu sync.Mutex
	var types []EventType
	f := newFixture(t, func(c *Config) {
		c.OnEvent = func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			types = append(types, ev.Type)
		}
	})
	f.start(t)
	f.agent.SimulateConfigured()
	f.agent.SimulateStatus(conversation.StatusAgentStartedSpeaking)
	f.agent.SimulateStatus(conversation.StatusUserStartedSpeaking)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, types, EventState)
	assert.Contains(t, types, EventAgentStartedSpeaking)
	assert.Contains(t, types, EventUserStartedSpeaking)
}

type memorySink struct {
	mu  sync.Mutex
	got map[string][]byte
}

func (m *memorySink) Upload(ctx context.Context, sessionID, bridgeID string, wav []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.got == nil {
		m.got = map[string][]byte{}
	}
	m.got[sessionID] = wav
	return nil
}

func TestRecordingUploadedOnClose(t *testing.T) {
	sink := &memorySink{}
	f := newFixture(t, func(c *Config) {
		c.Kind = KindBrowser
		c.Audio = browserPlan
		c.Recording = sink
	})
	f.start(t)
	f.agent.SimulateConfigured()
	f.bridge.HandleHumanAudio(float32Frame(0.5, -0.5))
	f.bridge.HumanClosed()

	require.NoError(t, f.notifier.Close(context.Background()))
	sink.mu.Lock()
	defer sink.mu.Unlock()
	wav := sink.got["s1"]
	require.Len(t, wav, 44+4)
	assert.Equal(t, "RIFF", string(wav[:4]))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a := newFixture(t, func(c *Config) { c.Registry = reg })
	b := newFixture(t, func(c *Config) { c.Registry = reg })
	b.bridge.SetStreamID("MZ123")

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, int64(2), reg.Total())

	got, ok := reg.Get(b.bridge.ID())
	require.True(t, ok)
	assert.Equal(t, b.bridge, got)

	infos := reg.List()
	require.Len(t, infos, 2)

	reg.CloseAll("shutdown")
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, StateClosed, a.bridge.State())
	assert.Equal(t, 1, a.agent.Closes())
	assert.Equal(t, 1, b.human.Closes())
}
