package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrDuplicateSession  = errors.New("client already owns a live session")
	ErrNoActiveSession   = errors.New("no active session")
	ErrAmbiguousSession  = errors.New("several sessions are active, session id required")
	ErrInvalidTransition = errors.New("invalid session state transition")

	ErrNegotiationFailed   = errors.New("negotiation failed")
	ErrUpstreamUnavailable = errors.New("processing node unavailable")
	ErrTrackFailed         = errors.New("track receive failed")
)
