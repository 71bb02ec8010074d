package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irdkwmnsb/webrtc-ingest/internal/candidate"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
	"github.com/irdkwmnsb/webrtc-ingest/internal/service"
	"github.com/irdkwmnsb/webrtc-ingest/internal/utils"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	defaultGatheringTimeout = 5 * time.Second
	notifyTimeout           = 5 * time.Second
)

// CandidateNotifier delivers locally gathered candidates to the relay.
type CandidateNotifier interface {
	NotifyCandidate(ctx context.Context, sessionID string, candidate webrtc.ICECandidateInit) error
}

type Option func(*Engine)

func WithGatheringTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.gatheringTimeout = timeout
	}
}

func WithTrackRecorder(recorder TrackRecorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithCandidateNotifier enables trickle ICE towards the relay. Answers are
// then returned without waiting for gathering to finish.
func WithCandidateNotifier(notifier CandidateNotifier) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithSweepInterval makes the engine run SweepStale periodically.
func WithSweepInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.sweepInterval = interval
	}
}

func WithStateObserver(observer StateObserver) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, observer)
	}
}

// Engine answers offers relayed from clients with one receive-only peer
// connection per session and turns inbound video into frames.
type Engine struct {
	registry *service.SessionRegistry
	factory  PeerFactory
	sink     domain.FrameSink
	recorder TrackRecorder
	notifier CandidateNotifier

	gatheringTimeout time.Duration
	sweepInterval    time.Duration
	observers        []StateObserver

	telemetry *telemetry
	sweeper   utils.IntervalTimer
	closeOnce sync.Once
}

func NewEngine(registry *service.SessionRegistry, factory PeerFactory, sink domain.FrameSink, opts ...Option) *Engine {
	e := &Engine{
		registry:         registry,
		factory:          factory,
		sink:             sink,
		gatheringTimeout: defaultGatheringTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.telemetry = newTelemetry(e.observers)
	if e.sweepInterval > 0 {
		e.sweeper = utils.SetIntervalTimer(e.sweepInterval, func() { e.SweepStale() })
	}
	return e
}

// HandleOffer negotiates a peer connection for the offer and returns the
// answer SDP with every gathered candidate, and the session id used. An
// empty sessionID gets a fresh one.
func (e *Engine) HandleOffer(ctx context.Context, sessionID, offer string) (string, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(offer)); err != nil {
		metrics.PeerConnectionFailuresTotal.WithLabelValues("invalid_offer").Inc()
		return "", sessionID, fmt.Errorf("invalid offer: %w: %w", domain.ErrNegotiationFailed, err)
	}
	if len(parsed.MediaDescriptions) == 0 {
		metrics.PeerConnectionFailuresTotal.WithLabelValues("invalid_offer").Inc()
		return "", sessionID, fmt.Errorf("offer has no media sections: %w", domain.ErrNegotiationFailed)
	}

	if err := e.registry.OpenSession(sessionID, sessionID); err != nil {
		return "", sessionID, err
	}

	logger := slog.With("sessionID", sessionID)
	logger.Info("negotiating offer", "mediaSections", len(parsed.MediaDescriptions))

	pc, err := e.factory()
	if err != nil {
		return "", sessionID, e.abort(sessionID, "create", err)
	}
	peer := newPeerSession(sessionID, pc)
	if err := e.registry.BindPeerConnection(sessionID, peer); err != nil {
		_ = peer.Close()
		return "", sessionID, e.abort(sessionID, "bind", err)
	}
	e.observe(peer)

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", sessionID, e.abort(sessionID, "set_remote", err)
	}
	if err := e.registry.Transition(sessionID, domain.SessionStateOfferSent); err != nil {
		return "", sessionID, e.abort(sessionID, "transition", err)
	}

	answer, err := pc.CreateAnswer()
	if err != nil {
		return "", sessionID, e.abort(sessionID, "create_answer", err)
	}
	if err := e.registry.Transition(sessionID, domain.SessionStateAnswerReceived); err != nil {
		return "", sessionID, e.abort(sessionID, "transition", err)
	}

	gatheringComplete := pc.GatheringComplete()
	gatheringStarted := time.Now()
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", sessionID, e.abort(sessionID, "set_local", err)
	}

	if e.notifier == nil {
		timer := time.NewTimer(e.gatheringTimeout)
		select {
		case <-gatheringComplete:
			metrics.ICEGatheringDuration.Observe(time.Since(gatheringStarted).Seconds())
		case <-timer.C:
			logger.Warn("ICE gathering timed out, answering with candidates gathered so far", "timeout", e.gatheringTimeout)
		case <-ctx.Done():
			timer.Stop()
			return "", sessionID, e.abort(sessionID, "gathering", ctx.Err())
		}
		timer.Stop()
	}

	local := pc.LocalDescription()
	if local == nil {
		return "", sessionID, e.abort(sessionID, "set_local", errors.New("no local description"))
	}
	if err := e.registry.Transition(sessionID, domain.SessionStateNegotiated); err != nil {
		return "", sessionID, e.abort(sessionID, "transition", err)
	}

	logger.Info("offer answered")
	return local.SDP, sessionID, nil
}

func (e *Engine) abort(sessionID, reason string, cause error) error {
	metrics.PeerConnectionFailuresTotal.WithLabelValues(reason).Inc()
	if err := e.registry.Close(sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		slog.Warn("failed to close session after negotiation failure", "sessionID", sessionID, "error", err)
	}
	return fmt.Errorf("session %s %s: %w: %w", sessionID, reason, domain.ErrNegotiationFailed, cause)
}

// observe registers the peer callbacks. State callbacks only publish
// events; tracks and trickled candidates run as loops of the session.
func (e *Engine) observe(peer *peerSession) {
	id := peer.id
	peer.pc.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		e.telemetry.publish(StateEvent{SessionID: id, Kind: StateKindICEGathering, State: state.String()})
	})
	peer.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		e.telemetry.publish(StateEvent{SessionID: id, Kind: StateKindICEConnection, State: state.String()})
	})
	peer.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.telemetry.publish(StateEvent{SessionID: id, Kind: StateKindConnection, State: state.String()})
	})
	peer.pc.OnTrack(func(track domain.RemoteTrack) {
		e.handleTrack(peer, track)
	})
	if e.notifier != nil {
		peer.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			init := c.ToJSON()
			peer.startLoop(func(ctx context.Context) {
				ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
				defer cancel()
				if err := e.notifier.NotifyCandidate(ctx, id, init); err != nil {
					slog.Warn("failed to trickle candidate to relay", "sessionID", id, "error", err)
				}
			})
		})
	}
}

func (e *Engine) handleTrack(peer *peerSession, track domain.RemoteTrack) {
	kind := track.Kind().String()
	codec := track.Codec()
	e.telemetry.publish(StateEvent{SessionID: peer.id, Kind: StateKindTrack, State: kind + " " + codec.MimeType})

	var sink domain.FrameSink
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		sink = e.sink
	}

	started := peer.startLoop(func(ctx context.Context) {
		metrics.ActiveTracks.WithLabelValues(kind).Inc()
		defer metrics.ActiveTracks.WithLabelValues(kind).Dec()

		var writer media.Writer
		if e.recorder != nil {
			w, err := e.recorder.Open(peer.id, track)
			if err != nil {
				slog.Warn("failed to start track recording", "sessionID", peer.id, "trackID", track.ID(), "error", err)
			} else if w != nil {
				writer = w
				defer func() {
					if err := w.Close(); err != nil {
						slog.Warn("failed to finish track recording", "sessionID", peer.id, "trackID", track.ID(), "error", err)
					}
				}()
			}
		}

		if err := receiveTrack(ctx, peer.id, peer.pc, track, sink, writer); err != nil {
			metrics.TrackErrorsTotal.WithLabelValues(kind).Inc()
			slog.Warn("track receive loop stopped", "sessionID", peer.id, "trackID", track.ID(), "error", err)
		}
		e.telemetry.publish(StateEvent{SessionID: peer.id, Kind: StateKindTrackFinished, State: kind})
	})
	if !started {
		slog.Debug("track arrived after session close", "sessionID", peer.id, "trackID", track.ID())
	}
}

// HandleCandidate applies a remote candidate to the peer of sessionID, or to
// the only active peer when sessionID is empty.
func (e *Engine) HandleCandidate(ctx context.Context, sessionID string, rec candidate.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	peer, err := e.resolve(sessionID)
	if err != nil {
		return err
	}
	if err := e.registry.AcceptsCandidates(peer.id); err != nil {
		return err
	}
	if err := peer.pc.AddICECandidate(candidate.ToICECandidateInit(rec)); err != nil {
		return fmt.Errorf("session %s: failed to add candidate: %w", peer.id, err)
	}
	metrics.ICECandidatesTotal.WithLabelValues(string(rec.Type)).Inc()
	slog.Debug("remote candidate added", "sessionID", peer.id, "type", rec.Type, "protocol", rec.Protocol)
	return nil
}

func (e *Engine) resolve(sessionID string) (*peerSession, error) {
	if sessionID != "" {
		s, err := e.registry.Lookup(sessionID)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNoActiveSession)
		}
		peer, ok := s.PeerConnection.(*peerSession)
		if !ok {
			return nil, fmt.Errorf("session %s has no peer connection: %w", sessionID, domain.ErrNoActiveSession)
		}
		return peer, nil
	}

	var peers []*peerSession
	for _, s := range e.registry.Active() {
		if peer, ok := s.PeerConnection.(*peerSession); ok {
			peers = append(peers, peer)
		}
	}
	switch len(peers) {
	case 0:
		return nil, domain.ErrNoActiveSession
	case 1:
		return peers[0], nil
	}
	return nil, fmt.Errorf("%d sessions active: %w", len(peers), domain.ErrAmbiguousSession)
}

// SweepStale closes sessions whose peer connection failed or was closed
// underneath them and returns how many it closed.
func (e *Engine) SweepStale() int {
	swept := 0
	for _, s := range e.registry.Active() {
		peer, ok := s.PeerConnection.(*peerSession)
		if !ok {
			continue
		}
		switch peer.pc.ConnectionState() {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		default:
			continue
		}
		if err := e.registry.Close(s.ID); err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				slog.Warn("failed to close stale session", "sessionID", s.ID, "error", err)
			}
			continue
		}
		swept++
	}
	if swept > 0 {
		slog.Info("stale sessions swept", "count", swept)
	}
	return swept
}

// Sessions returns live sessions, oldest first.
func (e *Engine) Sessions() []domain.Session {
	return e.registry.Active()
}

func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.sweeper != nil {
			e.sweeper.Stop()
		}
		e.registry.CloseAll()
		e.telemetry.stop()
	})
}
