package api

import "github.com/pion/webrtc/v4"

// Wire types of the processing node HTTP API.

type OfferRequest struct {
	Offer     string `json:"offer"`
	SessionID string `json:"sessionId,omitempty"`
}

type OfferResponse struct {
	SDP       string `json:"sdp"`
	SessionID string `json:"sessionId,omitempty"`
}

type CandidateRequest struct {
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
	SessionID string                   `json:"sessionId,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
