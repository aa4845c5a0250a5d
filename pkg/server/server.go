// Package server exposes the relay over HTTP: the TwiML entry point, the
// telephony and browser media sockets, the status feed and a few
// operational endpoints.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	statusws "github.com/gofiber/websocket/v2"
	"github.com/jonboulle/clockwork"

	"github.com/teslashibe/go-interview-relay/pkg/audioio"
	"github.com/teslashibe/go-interview-relay/pkg/bridge"
	"github.com/teslashibe/go-interview-relay/pkg/conversation"
	"github.com/teslashibe/go-interview-relay/pkg/hub"
	"github.com/teslashibe/go-interview-relay/pkg/metrics"
)

// Route paths.
const (
	PathTwiML         = "/twiml"
	PathMediaStream   = "/media-stream"
	PathBrowserStream = "/browser-stream"
	PathStatus        = "/ws/status"
)

// Version is reported by /health.
var Version = "1.0.0"

// AgentFactory opens a fresh, unconnected agent for one bridge.
type AgentFactory func() (conversation.Agent, error)

// TokenIssuer grants short-lived agent credentials to browsers.
type TokenIssuer interface {
	Grant(ctx context.Context, ttl time.Duration) (*conversation.AccessToken, error)
}

// Config wires the server to its collaborators.
type Config struct {
	// PublicHost is the externally reachable host used in TwiML stream URLs.
	// The request host is used when empty.
	PublicHost string

	// TelephonyTranscode sends linear16 16 kHz to the agent instead of
	// passing carrier mu-law straight through.
	TelephonyTranscode bool

	Defaults bridge.AgentDefaults
	NewAgent AgentFactory
	Tokens   TokenIssuer

	Loader   bridge.ContextLoader
	Backend  bridge.Backend
	Notifier bridge.Notifier
	Registry *bridge.Registry

	// Optional.
	Hub     *hub.Hub
	Metrics *metrics.Metrics
	// Recording stores browser session audio. Carrier calls are not recorded.
	Recording   bridge.RecordingSink
	Clock       clockwork.Clock
	GracePeriod time.Duration
	PendingMax  int
	Debug       bool
	Logger      *slog.Logger
}

// Server is the relay's HTTP front.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger
}

// New builds the Fiber app and registers every route.
func New(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = bridge.NewRegistry()
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: lg.With("component", "server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "interview-relay",
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}
	app.Use(s.rejectUnknownUpgrades)

	// Carrier entry point
	app.Get(PathTwiML, s.handleTwiML)
	app.Post(PathTwiML, s.handleTwiML)

	// WebSocket routes
	app.Use(PathMediaStream, requireUpgrade)
	app.Get(PathMediaStream, websocket.New(s.handleMediaStream))
	app.Use(PathBrowserStream, requireUpgrade)
	app.Get(PathBrowserStream, websocket.New(s.handleBrowserStream))
	if cfg.Hub != nil {
		app.Use(PathStatus, requireUpgrade)
		app.Get(PathStatus, statusws.New(hub.Handler(cfg.Hub)))
	}

	// API routes
	api := app.Group("/api")
	api.Get("/agent-token", s.handleAgentToken)
	api.Get("/bridges", s.handleBridges)

	app.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		app.Get("/metrics", s.handleMetrics())
	}

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Registry returns the live bridge registry.
func (s *Server) Registry() *bridge.Registry {
	return s.cfg.Registry
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening",
		"addr", addr,
		"media_stream", PathMediaStream,
		"browser_stream", PathBrowserStream,
	)
	return s.app.Listen(addr)
}

// Shutdown closes every live bridge, then stops accepting requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cfg.Registry.CloseAll("shutdown")
	return s.app.ShutdownWithContext(ctx)
}

// rejectUnknownUpgrades answers 404 to WebSocket upgrades on any path that
// is not a socket route.
func (s *Server) rejectUnknownUpgrades(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	switch c.Path() {
	case PathMediaStream, PathBrowserStream:
		return c.Next()
	case PathStatus:
		if s.cfg.Hub != nil {
			return c.Next()
		}
	}
	s.logger.Debug("rejecting upgrade", "path", c.Path())
	return fiber.ErrNotFound
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// newBridge builds a bridge around one human leg with the shared collaborators.
func (s *Server) newBridge(kind bridge.Kind, human bridge.HumanLeg, plan bridge.AudioPlan) (*bridge.Bridge, error) {
	if s.cfg.NewAgent == nil {
		return nil, errNoAgentFactory
	}
	agent, err := s.cfg.NewAgent()
	if err != nil {
		return nil, err
	}

	bc := bridge.Config{
		Kind:        kind,
		Agent:       agent,
		Human:       human,
		Audio:       plan,
		Defaults:    s.cfg.Defaults,
		Loader:      s.cfg.Loader,
		Backend:     s.cfg.Backend,
		Notifier:    s.cfg.Notifier,
		Registry:    s.cfg.Registry,
		Clock:       s.cfg.Clock,
		GracePeriod: s.cfg.GracePeriod,
		PendingMax:  s.cfg.PendingMax,
		Logger:      s.logger,
	}
	if kind == bridge.KindBrowser {
		bc.Recording = s.cfg.Recording
	}
	if s.cfg.Metrics != nil {
		bc.Recorder = s.cfg.Metrics
	}
	if s.cfg.Hub != nil {
		// Dashboards subscribe per interview with ?topic=<sessionId>.
		bc.OnEvent = func(ev bridge.Event) {
			if err := s.cfg.Hub.Publish(ev.SessionID, ev); err != nil {
				s.logger.Debug("status broadcast failed", "error", err)
			}
		}
	}

	b, err := bridge.New(bc)
	if err != nil {
		_ = agent.Close()
		return nil, err
	}
	return b, nil
}

// startBridge runs Start off the socket goroutine so inbound audio keeps
// queueing while the context loads and the agent connects.
func (s *Server) startBridge(b *bridge.Bridge, sessionID string) {
	go func() {
		if err := b.Start(context.Background(), sessionID); err != nil {
			s.logger.Warn("bridge start failed",
				"bridge_id", b.ID(),
				"session_id", sessionID,
				"error", err,
			)
		}
	}()
}

func (s *Server) telephonyPlan() bridge.AudioPlan {
	if s.cfg.TelephonyTranscode {
		return bridge.AudioPlan{
			HumanIn:  audioio.Telephony,
			AgentIn:  audioio.PCM16k,
			AgentOut: audioio.PCM16k,
			HumanOut: audioio.Telephony,
		}
	}
	return bridge.AudioPlan{
		HumanIn:  audioio.Telephony,
		AgentIn:  audioio.Telephony,
		AgentOut: audioio.Telephony,
		HumanOut: audioio.Telephony,
	}
}

func browserPlan() bridge.AudioPlan {
	return bridge.AudioPlan{
		HumanIn:  audioio.Browser,
		AgentIn:  audioio.PCM16k,
		AgentOut: audioio.PCM16k,
		HumanOut: audioio.PCM16k,
	}
}
