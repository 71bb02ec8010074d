package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type EnvelopeType string

const (
	EnvelopeTypeOffer               = EnvelopeType("offer")
	EnvelopeTypeAnswer              = EnvelopeType("answer")
	EnvelopeTypeCandidate           = EnvelopeType("candidate")
	EnvelopeTypeProcessingCandidate = EnvelopeType("processing_candidate")
	EnvelopeTypeError               = EnvelopeType("error")
)

type ErrorCode string

const (
	ErrorCodeMalformedCandidate  = ErrorCode("malformed_candidate")
	ErrorCodeNoActiveSession     = ErrorCode("no_active_session")
	ErrorCodeDuplicateSession    = ErrorCode("duplicate_session")
	ErrorCodeUpstreamUnavailable = ErrorCode("upstream_unavailable")
	ErrorCodeBadMessage          = ErrorCode("bad_message")
	ErrorCodeUnknownClient       = ErrorCode("unknown_client")
)

// Envelope is one message on the client channel. Candidate is kept raw so a
// processing candidate can be relayed without being re-encoded.
type Envelope struct {
	Type          EnvelopeType    `json:"type"`
	SessionID     string          `json:"sessionId,omitempty"`
	SDP           string          `json:"sdp,omitempty"`
	Candidate     json.RawMessage `json:"candidate,omitempty"`
	SDPMid        *string         `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16         `json:"sdpMLineIndex,omitempty"`
	Code          ErrorCode       `json:"code,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func NewAnswerEnvelope(sdp string) Envelope {
	return Envelope{Type: EnvelopeTypeAnswer, SDP: sdp}
}

func NewCandidateEnvelope(candidate json.RawMessage) Envelope {
	return Envelope{Type: EnvelopeTypeCandidate, Candidate: candidate}
}

func NewErrorEnvelope(code ErrorCode, err error) Envelope {
	return Envelope{Type: EnvelopeTypeError, Code: code, Error: err.Error()}
}

var ErrMissingCandidate = errors.New("candidate payload is missing")

// CandidateInit decodes the candidate payload. Clients send either the bare
// candidate line, with sdpMid and sdpMLineIndex next to it in the envelope,
// or an RTCIceCandidateInit object.
func (e Envelope) CandidateInit() (webrtc.ICECandidateInit, error) {
	if len(e.Candidate) == 0 || string(e.Candidate) == "null" {
		return webrtc.ICECandidateInit{}, ErrMissingCandidate
	}

	var line string
	if err := json.Unmarshal(e.Candidate, &line); err == nil {
		return webrtc.ICECandidateInit{
			Candidate:     line,
			SDPMid:        e.SDPMid,
			SDPMLineIndex: e.SDPMLineIndex,
		}, nil
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(e.Candidate, &init); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("candidate payload is neither a string nor an object: %w", err)
	}
	if init.SDPMid == nil {
		init.SDPMid = e.SDPMid
	}
	if init.SDPMLineIndex == nil {
		init.SDPMLineIndex = e.SDPMLineIndex
	}
	return init, nil
}
