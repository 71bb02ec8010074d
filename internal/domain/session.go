package domain

import "time"

// SessionState is a step of the offer/answer negotiation of one session.
type SessionState string

const (
	SessionStateAwaitingOffer  = SessionState("awaiting_offer")
	SessionStateOfferSent      = SessionState("offer_sent")
	SessionStateAnswerReceived = SessionState("answer_received")
	SessionStateNegotiated     = SessionState("negotiated")
	SessionStateClosed         = SessionState("closed")
)

var sessionTransitions = map[SessionState]SessionState{
	SessionStateAwaitingOffer:  SessionStateOfferSent,
	SessionStateOfferSent:      SessionStateAnswerReceived,
	SessionStateAnswerReceived: SessionStateNegotiated,
}

// CanTransition reports whether the state machine allows moving from s to next.
// Every non-terminal state may move to SessionStateClosed.
func (s SessionState) CanTransition(next SessionState) bool {
	if s == SessionStateClosed {
		return false
	}
	if next == SessionStateClosed {
		return true
	}
	return sessionTransitions[s] == next
}

// AcceptsCandidates reports whether remote candidates can be applied in this state.
func (s SessionState) AcceptsCandidates() bool {
	switch s {
	case SessionStateOfferSent, SessionStateAnswerReceived, SessionStateNegotiated:
		return true
	}
	return false
}

// PeerHandle is whatever a session has to release when it closes. On the
// processing node it owns the peer connection and its receive loops.
type PeerHandle interface {
	Close() error
}

type Session struct {
	ID             string
	ClientID       string
	PeerConnection PeerHandle
	CreatedAt      time.Time
	State          SessionState
}

func (s Session) IsLive() bool {
	return s.State != SessionStateClosed
}

type SessionRepository interface {
	Save(session Session) error
	GetByID(id string) (Session, error)
	GetByClient(clientID string) (Session, error)
	GetAll() ([]Session, error)
	Delete(id string) error
}
