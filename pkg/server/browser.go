package server

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-interview-relay/pkg/bridge"
	"github.com/teslashibe/go-interview-relay/pkg/telephony"
)

// legWriteWait bounds every write to a human leg socket.
const legWriteWait = 5 * time.Second

// browserControl is a text frame sent by the browser client.
type browserControl struct {
	Type string `json:"type"`
}

// handleBrowserStream relays one browser session: float32 capture frames in,
// linear16 playback frames and JSON status events out.
func (s *Server) handleBrowserStream(c *websocket.Conn) {
	sessionID := c.Query(telephony.SessionParam)
	leg := &browserLeg{conn: c}
	defer leg.detach()

	if sessionID == "" {
		_ = leg.SendEvent(bridge.Event{Type: bridge.EventError, Text: "sessionId is required", Time: time.Now()})
		return
	}

	b, err := s.newBridge(bridge.KindBrowser, leg, browserPlan())
	if err != nil {
		s.logger.Error("browser stream rejected", "error", err)
		_ = leg.SendEvent(bridge.Event{Type: bridge.EventError, Text: "agent unavailable", Time: time.Now()})
		return
	}
	defer b.HumanClosed()

	s.startBridge(b, sessionID)

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("browser stream read ended", "bridge_id", b.ID(), "error", err)
			}
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			b.HandleHumanAudio(data)
		case websocket.TextMessage:
			var ctl browserControl
			if err := sonic.Unmarshal(data, &ctl); err != nil {
				s.logger.Debug("ignoring malformed control frame", "bridge_id", b.ID(), "error", err)
				continue
			}
			if ctl.Type == "stop" {
				s.logger.Info("browser stream stopped", "bridge_id", b.ID())
				return
			}
		}
	}
}

// browserLeg writes playback audio and status events to a browser socket.
type browserLeg struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (l *browserLeg) SendAudio(audio []byte) error {
	return l.write(websocket.BinaryMessage, audio)
}

func (l *browserLeg) SendEvent(ev bridge.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return l.write(websocket.TextMessage, data)
}

func (l *browserLeg) write(mt int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLegClosed
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(legWriteWait))
	return l.conn.WriteMessage(mt, data)
}

func (l *browserLeg) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_ = l.conn.SetWriteDeadline(time.Now().Add(legWriteWait))
	_ = l.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
	return l.conn.Close()
}

func (l *browserLeg) detach() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
