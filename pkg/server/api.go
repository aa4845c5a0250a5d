package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// agentTokenTTL is requested for browser-direct sessions.
const agentTokenTTL = 60 * time.Second

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "ok",
		"version": Version,
		"bridges": s.cfg.Registry.Len(),
		"total":   s.cfg.Registry.Total(),
	}
	if s.cfg.Hub != nil {
		resp["status_clients"] = s.cfg.Hub.ClientCount()
	}
	return c.JSON(resp)
}

func (s *Server) handleBridges(c *fiber.Ctx) error {
	bridges := s.cfg.Registry.List()
	return c.JSON(fiber.Map{
		"bridges": bridges,
		"count":   len(bridges),
	})
}

func (s *Server) handleAgentToken(c *fiber.Ctx) error {
	if s.cfg.Tokens == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "agent tokens are not enabled")
	}
	tok, err := s.cfg.Tokens.Grant(c.UserContext(), agentTokenTTL)
	if err != nil {
		s.logger.Error("agent token grant failed", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "agent token unavailable")
	}
	return c.JSON(tok)
}

func (s *Server) handleMetrics() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(s.cfg.Metrics.Handler())
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}
