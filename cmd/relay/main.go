// relay: bridges interview calls and browser sessions to a voice agent.
// Accepts carrier media streams and browser audio sockets, pairs each with
// an agent connection and reports the conversation to the interview backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-interview-relay/internal/config"
	"github.com/teslashibe/go-interview-relay/internal/log"
	"github.com/teslashibe/go-interview-relay/pkg/backend"
	"github.com/teslashibe/go-interview-relay/pkg/bridge"
	"github.com/teslashibe/go-interview-relay/pkg/conversation"
	"github.com/teslashibe/go-interview-relay/pkg/hub"
	"github.com/teslashibe/go-interview-relay/pkg/interview"
	"github.com/teslashibe/go-interview-relay/pkg/metrics"
	"github.com/teslashibe/go-interview-relay/pkg/recording"
	"github.com/teslashibe/go-interview-relay/pkg/server"
)

var (
	version = "1.0.0"
	port    = flag.Int("port", 0, "HTTP server port (overrides PORT)")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = fmt.Sprint(*port)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log.InitWithOptions(cfg.LogLevel, log.Options{File: cfg.LogFile})
	logger := log.L()
	logger.Info("starting relay", "version", version, "port", cfg.Port, "backend", cfg.BackendURL)

	m := metrics.New("relay")

	backendClient := backend.NewClient(cfg.BackendURL,
		backend.WithToken(cfg.BackendToken),
		backend.WithLogger(logger),
	)
	notifier := backend.NewNotifier(
		backend.WithFailureHook(m.BackendFailure),
		backend.WithNotifierLogger(logger),
	)

	loader := interview.NewLoader(backendClient, logger)
	loader.Timeout = cfg.ContextTimeout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statusHub := hub.New("status", logger)
	go statusHub.Run(ctx)

	agentOpts := []conversation.Option{
		conversation.WithAPIKey(cfg.DeepgramAPIKey),
		conversation.WithLogger(logger),
	}
	if cfg.AgentURL != "" {
		agentOpts = append(agentOpts, conversation.WithURL(cfg.AgentURL))
	}

	srvCfg := server.Config{
		PublicHost:         cfg.PublicHost,
		TelephonyTranscode: cfg.TelephonyTranscode,
		Defaults: bridge.AgentDefaults{
			Language:      cfg.AgentLanguage,
			ThinkProvider: cfg.ThinkProvider,
			ThinkModel:    cfg.ThinkModel,
			Voice:         cfg.DefaultVoice,
			STTModel:      cfg.DefaultSTT,
		},
		NewAgent: func() (conversation.Agent, error) {
			return conversation.NewDeepgram(agentOpts...)
		},
		Tokens:      conversation.NewTokenGranter(cfg.DeepgramAPIKey),
		Loader:      loader,
		Backend:     backendClient,
		Notifier:    notifier,
		Registry:    bridge.NewRegistry(),
		Hub:         statusHub,
		Metrics:     m,
		GracePeriod: cfg.DrainGrace,
		PendingMax:  cfg.PendingAudioLimit,
		Debug:       *debug,
		Logger:      logger,
	}

	uploader, err := recording.NewFromEnv(ctx, cfg.AWSRegion, cfg.RecordingBucket, cfg.RecordingPrefix, logger)
	if err != nil {
		logger.Error("recording disabled", "error", err)
	} else if uploader != nil {
		srvCfg.Recording = uploader
	}

	srv := server.New(srvCfg)

	// Start server
	go func() {
		if err := srv.Listen(cfg.Addr()); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down", "live_bridges", srv.Registry().Len())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	// Final transcript lines and recordings are still in flight.
	if err := notifier.Close(shutdownCtx); err != nil {
		logger.Warn("notifier drain incomplete", "error", err, "pending", notifier.Pending())
	}
	cancel()

	logger.Info("goodbye")
}
