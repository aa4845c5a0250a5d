package conversation

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Agent for testing.
type Mock struct {
	mu sync.RWMutex

	state State

	// Callbacks
	onAudio               func(audio []byte)
	onConfigured          func()
	onConversationText    func(text ConversationText)
	onFunctionCallRequest func(calls []FunctionCall)
	onStatus              func(status Status)
	onError               func(err error)
	onClose               func()

	// Configurable behavior
	ConnectFunc   func(ctx context.Context) error
	SendAudioFunc func(audio []byte) error

	// Captured calls for assertions
	Settings   *Settings
	AudioSent  [][]byte
	Responses  []FunctionCallResponse
	CloseCalls int
}

// NewMock creates a new Mock agent.
func NewMock() *Mock {
	return &Mock{}
}

// Configure implements Agent.
func (m *Mock) Configure(settings Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Settings = &settings
}

// Connect implements Agent.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		if err := m.ConnectFunc(ctx); err != nil {
			m.mu.Lock()
			m.state = StateErrored
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return ErrAlreadyConnected
	}
	m.state = StateOpen
	return nil
}

// Close implements Agent. OnClose fires only on the first close.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()
	m.finish(StateClosed)
	return nil
}

// State implements Agent.
func (m *Mock) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SendAudio implements Agent.
func (m *Mock) SendAudio(audio []byte) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(audio)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Live() {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, append([]byte(nil), audio...))
	return nil
}

// RespondFunctionCall implements Agent.
func (m *Mock) RespondFunctionCall(resp FunctionCallResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Live() {
		return ErrNotConnected
	}
	m.Responses = append(m.Responses, resp)
	return nil
}

// OnAudio implements Agent.
func (m *Mock) OnAudio(fn func(audio []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// OnConfigured implements Agent.
func (m *Mock) OnConfigured(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConfigured = fn
}

// OnConversationText implements Agent.
func (m *Mock) OnConversationText(fn func(text ConversationText)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConversationText = fn
}

// OnFunctionCallRequest implements Agent.
func (m *Mock) OnFunctionCallRequest(fn func(calls []FunctionCall)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFunctionCallRequest = fn
}

// OnStatus implements Agent.
func (m *Mock) OnStatus(fn func(status Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// OnError implements Agent.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnClose implements Agent.
func (m *Mock) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// Test helpers

// SimulateConfigured moves the mock to configured and fires OnConfigured.
func (m *Mock) SimulateConfigured() {
	m.mu.Lock()
	m.state = StateConfigured
	fn := m.onConfigured
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateAudio triggers the OnAudio callback with the given audio.
func (m *Mock) SimulateAudio(audio []byte) {
	m.mu.RLock()
	fn := m.onAudio
	m.mu.RUnlock()
	if fn != nil {
		fn(audio)
	}
}

// SimulateConversationText triggers the OnConversationText callback.
func (m *Mock) SimulateConversationText(role, content string) {
	m.mu.RLock()
	fn := m.onConversationText
	m.mu.RUnlock()
	if fn != nil {
		fn(ConversationText{Role: role, Content: content})
	}
}

// SimulateFunctionCalls triggers the OnFunctionCallRequest callback.
func (m *Mock) SimulateFunctionCalls(calls ...FunctionCall) {
	m.mu.RLock()
	fn := m.onFunctionCallRequest
	m.mu.RUnlock()
	if fn != nil {
		fn(calls)
	}
}

// SimulateStatus triggers the OnStatus callback.
func (m *Mock) SimulateStatus(status Status) {
	m.mu.RLock()
	fn := m.onStatus
	m.mu.RUnlock()
	if fn != nil {
		fn(status)
	}
}

// SimulateError triggers the OnError callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateRemoteClose closes the mock as if the agent hung up.
func (m *Mock) SimulateRemoteClose() {
	m.finish(StateClosed)
}

// Sent returns a copy of the audio frames sent so far.
func (m *Mock) Sent() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]byte(nil), m.AudioSent...)
}

// ResponsesSent returns a copy of the function call responses sent so far.
func (m *Mock) ResponsesSent() []FunctionCallResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FunctionCallResponse(nil), m.Responses...)
}

// Closes returns how many times Close was called.
func (m *Mock) Closes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CloseCalls
}

func (m *Mock) finish(state State) {
	m.mu.Lock()
	if m.state.Terminal() {
		m.mu.Unlock()
		return
	}
	m.state = state
	fn := m.onClose
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Ensure Mock implements Agent.
var _ Agent = (*Mock)(nil)
