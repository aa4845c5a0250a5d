package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-interview-relay/pkg/bridge"
	"github.com/teslashibe/go-interview-relay/pkg/telephony"
)

var (
	errNoAgentFactory = errors.New("server: no agent factory configured")
	errLegClosed      = errors.New("server: human leg closed")
)

// handleTwiML answers the carrier webhook with a stream instruction.
func (s *Server) handleTwiML(c *fiber.Ctx) error {
	sessionID := c.Query(telephony.SessionParam)
	if sessionID == "" {
		sessionID = c.FormValue(telephony.SessionParam)
	}
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sessionId is required")
	}

	host := s.cfg.PublicHost
	if host == "" {
		host = c.Hostname()
	}

	body, err := telephony.ConnectTwiML(telephony.StreamURL(host, PathMediaStream, sessionID), sessionID)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(body)
}

// handleMediaStream runs one carrier media stream until it stops or either
// leg goes away.
func (s *Server) handleMediaStream(c *websocket.Conn) {
	stream := telephony.NewStream()
	leg := &telephonyLeg{conn: c, stream: stream}

	b, err := s.newBridge(bridge.KindTelephony, leg, s.telephonyPlan())
	if err != nil {
		s.logger.Error("media stream rejected", "error", err)
		return
	}
	// The conn is recycled once this handler returns.
	defer func() {
		b.HumanClosed()
		leg.detach()
	}()

	started := false
	if id := c.Query(telephony.SessionParam); id != "" {
		started = true
		s.startBridge(b, id)
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("media stream read ended", "bridge_id", b.ID(), "error", err)
			}
			return
		}

		frame, err := telephony.ParseFrame(data)
		if err != nil {
			s.logger.Debug("ignoring malformed frame", "bridge_id", b.ID(), "error", err)
			continue
		}

		effects, err := stream.Handle(frame)
		if err != nil {
			var perr *telephony.PayloadError
			switch {
			case errors.As(err, &perr):
				b.HumanDecodeFailed(err)
			case errors.Is(err, telephony.ErrStreamStopped):
				return
			}
			continue
		}

		for _, eff := range effects {
			switch eff.Kind {
			case telephony.EffectStarted:
				b.SetStreamID(eff.StreamSid)
				s.logger.Info("media stream started",
					"bridge_id", b.ID(),
					"stream_sid", eff.StreamSid,
					"call_sid", eff.CallSid,
				)
				if !started {
					if eff.SessionID == "" {
						s.logger.Warn("media stream rejected: no session id",
							"bridge_id", b.ID(),
							"stream_sid", eff.StreamSid,
						)
						return
					}
					started = true
					s.startBridge(b, eff.SessionID)
				}
			case telephony.EffectAudio:
				b.HandleHumanAudio(eff.Audio)
			case telephony.EffectStop:
				s.logger.Info("media stream stopped", "bridge_id", b.ID())
				return
			}
		}
	}
}

// telephonyLeg plays agent audio back into the carrier stream.
type telephonyLeg struct {
	conn   *websocket.Conn
	stream *telephony.Stream

	mu     sync.Mutex
	closed bool
}

func (l *telephonyLeg) SendAudio(audio []byte) error {
	frame, err := l.stream.MediaFrame(audio)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLegClosed
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(legWriteWait))
	return l.conn.WriteMessage(websocket.TextMessage, frame)
}

// SendEvent is a no-op: carrier streams have no status channel.
func (l *telephonyLeg) SendEvent(bridge.Event) error {
	return nil
}

func (l *telephonyLeg) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}

// detach stops all writes without closing the conn; the handler owns it.
func (l *telephonyLeg) detach() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
