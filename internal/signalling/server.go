package signalling

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/irdkwmnsb/webrtc-ingest/internal/config"
	"github.com/irdkwmnsb/webrtc-ingest/internal/repository/memory"
	"github.com/irdkwmnsb/webrtc-ingest/internal/service"
	"github.com/irdkwmnsb/webrtc-ingest/internal/sockets"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const statusMessage = "WebRTC Signaling Server is running!"

// Server exposes the relay over HTTP:
//   - GET  /ws?clientId=<id>        client signalling channel
//   - POST /processing_candidate    out-of-band processing node candidates
//   - GET  /                        liveness message
//   - GET  /metrics                 Prometheus metrics
type Server struct {
	app      *fiber.App
	config   *config.ServerConfig
	registry *service.SessionRegistry
	clients  *sockets.SocketPool
	relay    *Relay
	handler  *ClientHandler
}

func NewServer(cfg *config.ServerConfig, app *fiber.App, processor Processor) *Server {
	registry := service.NewSessionRegistry(memory.NewSessionRepository())
	clients := sockets.NewSocketPool()
	relay := NewRelay(registry, clients, processor, cfg.RequestTimeout())

	return &Server{
		app:      app,
		config:   cfg,
		registry: registry,
		clients:  clients,
		relay:    relay,
		handler:  NewClientHandler(relay, NewSessionHandler(relay), cfg.PingPeriod()),
	}
}

// Close drops every client channel and session.
func (s *Server) Close() {
	s.clients.Close()
	s.registry.CloseAll()
}

func (s *Server) SetupRoutes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(api.MessageResponse{Message: statusMessage})
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app.Post("/processing_candidate", s.handleProcessingCandidate)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in /ws", "error", err)
			}
		}()

		s.handler.HandleSocket(c)
	}))
}

func (s *Server) handleProcessingCandidate(c *fiber.Ctx) error {
	var env api.Envelope
	if err := json.Unmarshal(c.Body(), &env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Detail: "Invalid JSON body"})
	}

	if err := s.relay.DeliverProcessingCandidate(env.SessionID, env.Candidate); err != nil {
		switch {
		case errors.Is(err, api.ErrMissingCandidate):
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Detail: "ICE candidate not provided"})
		case errors.Is(err, ErrUnknownClient):
			return c.Status(fiber.StatusNotFound).JSON(api.ErrorResponse{Detail: err.Error()})
		default:
			slog.Warn("failed to relay processing candidate", "sessionID", env.SessionID, "error", err)
			return c.Status(fiber.StatusBadGateway).JSON(api.ErrorResponse{Detail: "Failed to reach client"})
		}
	}
	return c.JSON(api.StatusResponse{Status: "candidate relayed"})
}
