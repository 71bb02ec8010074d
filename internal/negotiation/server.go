package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/irdkwmnsb/webrtc-ingest/internal/candidate"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const statusMessage = "Video Processing Server is running!"

// Negotiator is what the HTTP API needs from the engine.
type Negotiator interface {
	HandleOffer(ctx context.Context, sessionID, offer string) (string, string, error)
	HandleCandidate(ctx context.Context, sessionID string, rec candidate.Record) error
}

// Server exposes the engine to the relay:
//   - POST /process_offer
//   - POST /process_candidate
//   - GET  /            liveness message
//   - GET  /metrics     Prometheus metrics
//   - GET  /frames/*    browse produced frames, when a directory is given
type Server struct {
	app            *fiber.App
	negotiator     Negotiator
	framesDir      string
	requestTimeout time.Duration
}

func NewServer(app *fiber.App, negotiator Negotiator, framesDir string, requestTimeout time.Duration) *Server {
	return &Server{
		app:            app,
		negotiator:     negotiator,
		framesDir:      framesDir,
		requestTimeout: requestTimeout,
	}
}

func (s *Server) SetupRoutes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(api.MessageResponse{Message: statusMessage})
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app.Post("/process_offer", s.handleOffer)
	s.app.Post("/process_candidate", s.handleCandidate)

	if s.framesDir != "" {
		s.app.Static("/frames", s.framesDir, fiber.Static{Browse: true})
	}
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.requestTimeout)
}

func (s *Server) handleOffer(c *fiber.Ctx) error {
	var req api.OfferRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Offer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Detail: "Offer SDP not provided"})
	}

	ctx, cancel := s.requestContext()
	defer cancel()

	answer, sessionID, err := s.negotiator.HandleOffer(ctx, req.SessionID, req.Offer)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateSession):
			return c.Status(fiber.StatusConflict).JSON(api.ErrorResponse{Detail: "Session already exists"})
		default:
			slog.Error("failed to process offer", "sessionID", sessionID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorResponse{Detail: "Internal Server Error"})
		}
	}
	return c.JSON(api.OfferResponse{SDP: answer, SessionID: sessionID})
}

func (s *Server) handleCandidate(c *fiber.Ctx) error {
	var req api.CandidateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Candidate == nil || req.Candidate.Candidate == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Detail: "ICE candidate not provided"})
	}

	rec, err := candidate.FromICECandidateInit(*req.Candidate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Detail: err.Error()})
	}

	ctx, cancel := s.requestContext()
	defer cancel()

	if err := s.negotiator.HandleCandidate(ctx, req.SessionID, rec); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoActiveSession), errors.Is(err, domain.ErrAmbiguousSession):
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Detail: "No peer connection available"})
		default:
			slog.Error("failed to process candidate", "sessionID", req.SessionID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorResponse{Detail: "Internal Server Error"})
		}
	}
	return c.JSON(api.StatusResponse{Status: "candidate processed"})
}
