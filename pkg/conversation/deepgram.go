package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Deepgram implements Agent for the Deepgram Voice Agent API.
type Deepgram struct {
	config *Config
	logger *slog.Logger

	mu          sync.Mutex
	machine     Machine
	conn        *websocket.Conn
	settings    *Settings
	cancel      context.CancelFunc
	connectedAt time.Time

	// writeMu serializes data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// Callbacks
	onAudio               func(audio []byte)
	onConfigured          func()
	onConversationText    func(text ConversationText)
	onFunctionCallRequest func(calls []FunctionCall)
	onStatus              func(status Status)
	onError               func(err error)
	onClose               func()

	// Atomic counters for metrics
	messagesSent       atomic.Int64
	messagesReceived   atomic.Int64
	audioBytesSent     atomic.Int64
	audioBytesReceived atomic.Int64
}

// NewDeepgram creates a new agent connection. Nothing is dialed until Connect.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}

	return &Deepgram{
		config: cfg,
		logger: cfg.Logger.With("component", "conversation.deepgram"),
	}, nil
}

// Configure implements Agent.
func (d *Deepgram) Configure(settings Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = &settings
}

// Connect implements Agent.
func (d *Deepgram) Connect(ctx context.Context) error {
	d.mu.Lock()
	if d.settings == nil {
		d.mu.Unlock()
		return ErrNotConfigured
	}
	if d.machine.State() != StateIdle {
		d.mu.Unlock()
		return ErrAlreadyConnected
	}
	d.machine.Handle(Event{Kind: EventDial})
	d.mu.Unlock()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.Timeout,
	}

	d.logger.Info("connecting to voice agent", "url", d.config.URL)

	conn, resp, err := dialer.DialContext(ctx, d.config.URL, headers)
	if err != nil {
		connErr := NewConnectionError("dial failed", err)
		if resp != nil {
			connErr.StatusCode = resp.StatusCode
			connErr.Reason = fmt.Sprintf("dial failed with status %d", resp.StatusCode)
		}
		d.apply(Event{Kind: EventFailed, Err: connErr})
		return connErr
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	if d.machine.State().Terminal() {
		// Closed while dialing.
		d.mu.Unlock()
		cancel()
		conn.Close()
		return ErrNotConnected
	}
	d.conn = conn
	d.cancel = cancel
	d.connectedAt = time.Now()
	d.mu.Unlock()

	d.apply(Event{Kind: EventOpened})

	go d.readLoop(loopCtx, conn)
	if d.config.KeepAliveInterval > 0 {
		go d.keepAlive(loopCtx)
	}

	return nil
}

// Close implements Agent.
func (d *Deepgram) Close() error {
	d.apply(Event{Kind: EventClosed})
	return nil
}

// State implements Agent.
func (d *Deepgram) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.machine.State()
}

// SendAudio implements Agent.
func (d *Deepgram) SendAudio(audio []byte) error {
	if err := d.write(websocket.BinaryMessage, audio); err != nil {
		return err
	}
	d.audioBytesSent.Add(int64(len(audio)))
	return nil
}

// RespondFunctionCall implements Agent.
func (d *Deepgram) RespondFunctionCall(resp FunctionCallResponse) error {
	data, err := encodeFunctionCallResponse(resp)
	if err != nil {
		return fmt.Errorf("conversation.deepgram: marshal failed: %w", err)
	}
	if err := d.write(websocket.TextMessage, data); err != nil {
		return err
	}
	d.logger.Debug("responded to function call",
		"call_id", resp.ID,
		"name", resp.Name,
		"content_len", len(resp.Content),
	)
	return nil
}

// Metrics returns connection statistics.
func (d *Deepgram) Metrics() Metrics {
	d.mu.Lock()
	connectedAt := d.connectedAt
	d.mu.Unlock()
	return Metrics{
		ConnectionTime:     connectedAt,
		MessagesSent:       d.messagesSent.Load(),
		MessagesReceived:   d.messagesReceived.Load(),
		AudioBytesSent:     d.audioBytesSent.Load(),
		AudioBytesReceived: d.audioBytesReceived.Load(),
	}
}

// OnAudio implements Agent.
func (d *Deepgram) OnAudio(fn func(audio []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAudio = fn
}

// OnConfigured implements Agent.
func (d *Deepgram) OnConfigured(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onConfigured = fn
}

// OnConversationText implements Agent.
func (d *Deepgram) OnConversationText(fn func(text ConversationText)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onConversationText = fn
}

// OnFunctionCallRequest implements Agent.
func (d *Deepgram) OnFunctionCallRequest(fn func(calls []FunctionCall)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFunctionCallRequest = fn
}

// OnStatus implements Agent.
func (d *Deepgram) OnStatus(fn func(status Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onStatus = fn
}

// OnError implements Agent.
func (d *Deepgram) OnError(fn func(err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

// OnClose implements Agent.
func (d *Deepgram) OnClose(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = fn
}

// apply feeds the state machine and runs the resulting effects outside the lock.
func (d *Deepgram) apply(ev Event) {
	d.mu.Lock()
	effects := d.machine.Handle(ev)
	d.mu.Unlock()

	for _, eff := range effects {
		d.execute(eff)
	}
}

func (d *Deepgram) execute(eff Effect) {
	d.mu.Lock()
	settings := d.settings
	onAudio := d.onAudio
	onConfigured := d.onConfigured
	onText := d.onConversationText
	onCalls := d.onFunctionCallRequest
	onStatus := d.onStatus
	onError := d.onError
	onClose := d.onClose
	d.mu.Unlock()

	switch eff.Kind {
	case EffectSendSettings:
		data, err := sonic.Marshal(settings)
		if err == nil {
			err = d.write(websocket.TextMessage, data)
		}
		if err != nil {
			d.logger.Error("failed to send settings", "error", err)
			d.apply(Event{Kind: EventFailed, Err: err})
			return
		}
		d.logger.Debug("settings sent")

	case EffectConfigured:
		d.logger.Info("agent configured")
		if onConfigured != nil {
			onConfigured()
		}

	case EffectAudio:
		if onAudio != nil {
			onAudio(eff.Audio)
		}

	case EffectConversationText:
		if onText != nil {
			onText(eff.Text)
		}

	case EffectFunctionCalls:
		if onCalls != nil {
			onCalls(eff.Calls)
		}

	case EffectStatus:
		if onStatus != nil {
			onStatus(eff.Status)
		}

	case EffectError:
		var apiErr *APIError
		if errors.As(eff.Err, &apiErr) && apiErr.Warning {
			d.logger.Warn("agent warning", "error", eff.Err)
		} else {
			d.logger.Error("agent error", "error", eff.Err)
		}
		if onError != nil {
			onError(eff.Err)
		}

	case EffectClose:
		d.teardown()
		d.logger.Info("disconnected from voice agent")
		if onClose != nil {
			onClose()
		}
	}
}

func (d *Deepgram) teardown() {
	d.mu.Lock()
	conn, cancel := d.conn, d.cancel
	d.conn, d.cancel = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		// WriteControl may run concurrently with other writers.
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
}

func (d *Deepgram) write(messageType int, data []byte) error {
	d.mu.Lock()
	conn := d.conn
	live := d.machine.State().Live()
	d.mu.Unlock()

	if !live || conn == nil {
		return ErrNotConnected
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(d.config.WriteTimeout))
	}
	if err := conn.WriteMessage(messageType, data); err != nil {
		return NewConnectionError("write failed", err)
	}

	d.messagesSent.Add(1)
	return nil
}

// readLoop processes incoming WebSocket messages until the socket fails.
func (d *Deepgram) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.apply(Event{Kind: EventClosed})
			} else {
				d.apply(Event{Kind: EventFailed, Err: NewConnectionError("read failed", err)})
			}
			return
		}

		d.messagesReceived.Add(1)

		switch msgType {
		case websocket.BinaryMessage:
			d.audioBytesReceived.Add(int64(len(data)))
			d.apply(Event{Kind: EventAudio, Audio: data})

		case websocket.TextMessage:
			msg, err := ParseServerMessage(data)
			if err != nil {
				d.logger.Warn("failed to parse message", "error", err)
				continue
			}
			if msg.Type == MsgWelcome {
				d.logger.Debug("agent welcome", "request_id", msg.RequestID)
			}
			d.apply(Event{Kind: EventMessage, Message: msg})
		}
	}
}

func (d *Deepgram) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(d.config.KeepAliveInterval)
	defer ticker.Stop()

	data, _ := encodeKeepAlive()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.write(websocket.TextMessage, data); err != nil {
				if errors.Is(err, ErrNotConnected) {
					return
				}
				d.logger.Warn("keep-alive failed", "error", err)
			}
		}
	}
}

// Ensure Deepgram implements Agent.
var _ Agent = (*Deepgram)(nil)
