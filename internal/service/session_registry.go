package service

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
)

// SessionRegistry is the only writer of session records. Writes are
// serialized; reads go straight to the repository.
type SessionRegistry struct {
	repo domain.SessionRepository
	mu   sync.Mutex
	now  func() time.Time
}

func NewSessionRegistry(repo domain.SessionRepository) *SessionRegistry {
	return &SessionRegistry{
		repo: repo,
		now:  time.Now,
	}
}

// CreateSession opens a session for clientID under a fresh id.
func (r *SessionRegistry) CreateSession(clientID string) (string, error) {
	id := uuid.NewString()
	if err := r.OpenSession(id, clientID); err != nil {
		return "", err
	}
	return id, nil
}

// OpenSession opens a session under an id chosen by the caller, as the
// processing node does with ids assigned by the relay.
func (r *SessionRegistry) OpenSession(id, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.repo.GetByID(id); err == nil {
		return fmt.Errorf("session %s: %w", id, domain.ErrDuplicateSession)
	}
	if existing, err := r.repo.GetByClient(clientID); err == nil && existing.IsLive() {
		return fmt.Errorf("client %s owns session %s: %w", clientID, existing.ID, domain.ErrDuplicateSession)
	}

	s := domain.Session{
		ID:        id,
		ClientID:  clientID,
		CreatedAt: r.now(),
		State:     domain.SessionStateAwaitingOffer,
	}
	if err := r.repo.Save(s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	metrics.SessionsCreatedTotal.Inc()
	metrics.ActiveSessions.Inc()
	slog.Debug("session created", "sessionID", id, "clientID", clientID)
	return nil
}

func (r *SessionRegistry) BindPeerConnection(id string, handle domain.PeerHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	s.PeerConnection = handle
	return r.repo.Save(s)
}

func (r *SessionRegistry) Lookup(id string) (domain.Session, error) {
	return r.repo.GetByID(id)
}

func (r *SessionRegistry) LookupByClient(clientID string) (domain.Session, error) {
	return r.repo.GetByClient(clientID)
}

// Transition moves the session to next if the state machine allows it.
// Use Close to reach SessionStateClosed.
func (r *SessionRegistry) Transition(id string, next domain.SessionState) error {
	if next == domain.SessionStateClosed {
		return r.Close(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	if !s.State.CanTransition(next) {
		return fmt.Errorf("session %s %s -> %s: %w", id, s.State, next, domain.ErrInvalidTransition)
	}
	s.State = next
	if err := r.repo.Save(s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	metrics.SessionTransitionsTotal.WithLabelValues(string(next)).Inc()
	slog.Debug("session transition", "sessionID", id, "state", next)
	return nil
}

// AcceptsCandidates returns ErrNoActiveSession unless remote candidates can
// be applied to the session right now. It never changes the session.
func (r *SessionRegistry) AcceptsCandidates(id string) error {
	s, err := r.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, domain.ErrNoActiveSession)
	}
	if !s.State.AcceptsCandidates() {
		return fmt.Errorf("session %s is %s: %w", id, s.State, domain.ErrNoActiveSession)
	}
	return nil
}

// Close marks the session closed, forgets it and releases its peer handle.
// Closing an unknown session returns ErrSessionNotFound and has no effect.
func (r *SessionRegistry) Close(id string) error {
	r.mu.Lock()
	s, err := r.repo.GetByID(id)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("session %s: %w", id, err)
	}
	if err := r.repo.Delete(id); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to delete session: %w", err)
	}
	r.mu.Unlock()

	previous := s.State
	s.State = domain.SessionStateClosed
	metrics.SessionTransitionsTotal.WithLabelValues(string(s.State)).Inc()
	metrics.ActiveSessions.Dec()
	metrics.SessionDuration.Observe(r.now().Sub(s.CreatedAt).Seconds())
	slog.Info("session closed", "sessionID", id, "clientID", s.ClientID, "previousState", previous)

	if s.PeerConnection != nil {
		if err := s.PeerConnection.Close(); err != nil {
			return fmt.Errorf("failed to release peer connection of session %s: %w", id, err)
		}
	}
	return nil
}

// Active returns live sessions, oldest first.
func (r *SessionRegistry) Active() []domain.Session {
	sessions, err := r.repo.GetAll()
	if err != nil {
		slog.Error("failed to list sessions", "error", err)
		return nil
	}
	sessions = slices.DeleteFunc(sessions, func(s domain.Session) bool { return !s.IsLive() })
	slices.SortFunc(sessions, func(a, b domain.Session) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sessions
}

func (r *SessionRegistry) CloseAll() {
	for _, s := range r.Active() {
		if err := r.Close(s.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			slog.Warn("failed to close session", "sessionID", s.ID, "error", err)
		}
	}
}
