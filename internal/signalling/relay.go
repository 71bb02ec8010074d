package signalling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/irdkwmnsb/webrtc-ingest/internal/candidate"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
	"github.com/irdkwmnsb/webrtc-ingest/internal/service"
	"github.com/irdkwmnsb/webrtc-ingest/internal/sockets"
	"github.com/pion/webrtc/v4"
)

var ErrUnknownClient = errors.New("no connected client for processing candidate")

const maxHeldCandidates = 64

// heldCandidates are processing candidates of a session that arrived before
// its answer reached the client.
type heldCandidates struct {
	answered bool
	payloads []json.RawMessage
}

// Processor is the processing node as seen by the relay.
type Processor interface {
	ProcessOffer(ctx context.Context, sessionID, sdp string) (string, error)
	ProcessCandidate(ctx context.Context, sessionID string, candidate webrtc.ICECandidateInit) error
}

// Relay moves signalling messages between client channels and the
// processing node. It never mutates sessions itself; every state change
// goes through the registry.
type Relay struct {
	registry       *service.SessionRegistry
	clients        *sockets.SocketPool
	processor      Processor
	requestTimeout time.Duration

	heldMu sync.Mutex
	held   map[string]*heldCandidates
}

func NewRelay(registry *service.SessionRegistry, clients *sockets.SocketPool, processor Processor, requestTimeout time.Duration) *Relay {
	return &Relay{
		registry:       registry,
		clients:        clients,
		processor:      processor,
		requestTimeout: requestTimeout,
		held:           make(map[string]*heldCandidates),
	}
}

// Connect binds the client id to soc. A previous channel of the same client
// is closed together with its session.
func (r *Relay) Connect(clientID sockets.SocketID, soc sockets.Socket) {
	if replaced := r.clients.AddSocket(clientID, soc); replaced != nil {
		metrics.ReplacedConnectionsTotal.Inc()
		slog.Info("client reconnected, previous channel closed", "clientID", clientID)
		r.closeClientSession(clientID)
	}
}

// Disconnect releases the client's session unless soc was already replaced
// by a newer channel of the same client.
func (r *Relay) Disconnect(clientID sockets.SocketID, soc sockets.Socket) {
	if !r.clients.RemoveSocket(clientID, soc) {
		return
	}
	r.closeClientSession(clientID)
}

func (r *Relay) closeClientSession(clientID sockets.SocketID) {
	s, err := r.registry.LookupByClient(string(clientID))
	if err != nil {
		return
	}
	r.dropCandidates(s.ID)
	if err := r.registry.Close(s.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		slog.Warn("failed to close session", "sessionID", s.ID, "clientID", clientID, "error", err)
	}
}

// HandleEnvelope processes one inbound envelope. Callers handle the
// envelopes of a channel one at a time, in order.
func (r *Relay) HandleEnvelope(ctx context.Context, clientID sockets.SocketID, soc sockets.Socket, env api.Envelope) {
	metrics.SignallingMessagesTotal.WithLabelValues(string(env.Type), "in").Inc()

	switch env.Type {
	case api.EnvelopeTypeOffer:
		r.handleOffer(ctx, clientID, soc, env)
	case api.EnvelopeTypeCandidate:
		r.handleCandidate(ctx, clientID, soc, env)
	case api.EnvelopeTypeProcessingCandidate:
		if err := r.DeliverProcessingCandidate(env.SessionID, env.Candidate); err != nil {
			r.sendError(soc, api.ErrorCodeUnknownClient, err)
		}
	default:
		r.sendError(soc, api.ErrorCodeBadMessage, fmt.Errorf("unsupported message type %q", env.Type))
	}
}

func (r *Relay) handleOffer(ctx context.Context, clientID sockets.SocketID, soc sockets.Socket, env api.Envelope) {
	if env.SDP == "" {
		r.sendError(soc, api.ErrorCodeBadMessage, errors.New("offer without sdp"))
		return
	}

	sessionID, err := r.registry.CreateSession(string(clientID))
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSession) {
			r.sendError(soc, api.ErrorCodeDuplicateSession, err)
			return
		}
		r.sendError(soc, api.ErrorCodeBadMessage, err)
		return
	}
	logger := slog.With("clientID", clientID, "sessionID", sessionID)
	r.holdCandidates(sessionID)

	if err := r.registry.Transition(sessionID, domain.SessionStateOfferSent); err != nil {
		logger.Error("failed to mark offer as sent", "error", err)
		r.abortSession(sessionID)
		r.sendError(soc, api.ErrorCodeBadMessage, err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	answer, err := r.processor.ProcessOffer(reqCtx, sessionID, env.SDP)
	if err != nil {
		logger.Warn("processing node rejected offer", "error", err)
		r.abortSession(sessionID)
		r.sendError(soc, api.ErrorCodeUpstreamUnavailable, err)
		return
	}

	if err := r.registry.Transition(sessionID, domain.SessionStateAnswerReceived); err != nil {
		// the channel went away while the offer was in flight
		logger.Info("session ended before the answer arrived", "error", err)
		r.dropCandidates(sessionID)
		return
	}

	if err := r.send(soc, api.NewAnswerEnvelope(answer)); err != nil {
		logger.Warn("failed to relay answer", "error", err)
		r.abortSession(sessionID)
		return
	}
	r.releaseCandidates(sessionID, soc)

	if err := r.registry.Transition(sessionID, domain.SessionStateNegotiated); err != nil {
		logger.Info("session ended before negotiation completed", "error", err)
		return
	}
	logger.Info("session negotiated")
}

func (r *Relay) handleCandidate(ctx context.Context, clientID sockets.SocketID, soc sockets.Socket, env api.Envelope) {
	init, err := env.CandidateInit()
	if err != nil {
		r.sendError(soc, api.ErrorCodeMalformedCandidate, fmt.Errorf("%w: %w", candidate.ErrMalformedCandidate, err))
		return
	}

	record, err := candidate.FromICECandidateInit(init)
	if err != nil {
		var parseErr *candidate.ParseError
		if errors.As(err, &parseErr) {
			metrics.CandidateParseFailuresTotal.WithLabelValues(parseErr.Field).Inc()
		}
		slog.Debug("rejected client candidate", "clientID", clientID, "error", err)
		r.sendError(soc, api.ErrorCodeMalformedCandidate, err)
		return
	}

	s, err := r.registry.LookupByClient(string(clientID))
	if err != nil {
		r.sendError(soc, api.ErrorCodeNoActiveSession, domain.ErrNoActiveSession)
		return
	}
	if err := r.registry.AcceptsCandidates(s.ID); err != nil {
		r.sendError(soc, api.ErrorCodeNoActiveSession, err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	if err := r.processor.ProcessCandidate(reqCtx, s.ID, candidate.ToICECandidateInit(record)); err != nil {
		slog.Warn("failed to forward candidate", "sessionID", s.ID, "error", err)
		r.sendError(soc, api.ErrorCodeUpstreamUnavailable, err)
		return
	}
	metrics.ICECandidatesTotal.WithLabelValues(string(record.Type)).Inc()
}

// DeliverProcessingCandidate relays a processing node candidate unchanged to
// the client owning sessionID, or to the only connected client when
// sessionID is empty. Candidates of a session whose answer has not been sent
// yet are held and follow the answer.
func (r *Relay) DeliverProcessingCandidate(sessionID string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return fmt.Errorf("processing candidate: %w", api.ErrMissingCandidate)
	}

	var soc sockets.Socket
	if sessionID != "" {
		s, err := r.registry.Lookup(sessionID)
		if err != nil {
			return fmt.Errorf("session %s: %w", sessionID, ErrUnknownClient)
		}
		soc = r.clients.GetSocket(sockets.SocketID(s.ClientID))
	} else if clientID, sole, ok := r.clients.Sole(); ok {
		soc = sole
		if s, err := r.registry.LookupByClient(string(clientID)); err == nil {
			sessionID = s.ID
		}
	}
	if soc == nil {
		return ErrUnknownClient
	}

	r.heldMu.Lock()
	defer r.heldMu.Unlock()
	if h, ok := r.held[sessionID]; ok && !h.answered {
		if len(h.payloads) >= maxHeldCandidates {
			return fmt.Errorf("session %s: too many candidates before answer", sessionID)
		}
		h.payloads = append(h.payloads, payload)
		return nil
	}
	return r.send(soc, api.NewCandidateEnvelope(payload))
}

func (r *Relay) holdCandidates(sessionID string) {
	r.heldMu.Lock()
	defer r.heldMu.Unlock()
	r.held[sessionID] = &heldCandidates{}
}

// releaseCandidates sends the candidates held for sessionID after its
// answer; later ones go straight to the client.
func (r *Relay) releaseCandidates(sessionID string, soc sockets.Socket) {
	r.heldMu.Lock()
	defer r.heldMu.Unlock()
	h, ok := r.held[sessionID]
	if !ok {
		return
	}
	h.answered = true
	for _, payload := range h.payloads {
		if err := r.send(soc, api.NewCandidateEnvelope(payload)); err != nil {
			slog.Warn("failed to relay held candidate", "sessionID", sessionID, "error", err)
			break
		}
	}
	h.payloads = nil
}

func (r *Relay) dropCandidates(sessionID string) {
	r.heldMu.Lock()
	defer r.heldMu.Unlock()
	delete(r.held, sessionID)
}

func (r *Relay) abortSession(sessionID string) {
	r.dropCandidates(sessionID)
	if err := r.registry.Close(sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		slog.Warn("failed to close session", "sessionID", sessionID, "error", err)
	}
}

func (r *Relay) send(soc sockets.Socket, env api.Envelope) error {
	if err := soc.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to write %s: %w", env.Type, err)
	}
	metrics.SignallingMessagesTotal.WithLabelValues(string(env.Type), "out").Inc()
	return nil
}

func (r *Relay) sendError(soc sockets.Socket, code api.ErrorCode, err error) {
	metrics.SignallingErrorsTotal.WithLabelValues(string(code)).Inc()
	if sendErr := r.send(soc, api.NewErrorEnvelope(code, err)); sendErr != nil {
		slog.Debug("failed to send error envelope", "code", code, "error", sendErr)
	}
}
