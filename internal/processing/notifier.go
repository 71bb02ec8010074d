package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/pion/webrtc/v4"
	"github.com/valyala/fasthttp"
)

const EndpointProcessingCandidate = "/processing_candidate"

// RelayNotifier trickles candidates gathered on the processing node back to
// the relay, which hands them to the owning client.
type RelayNotifier struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

func NewRelayNotifier(relayURL string, timeout time.Duration) *RelayNotifier {
	return &RelayNotifier{
		baseURL: strings.TrimRight(relayURL, "/"),
		timeout: timeout,
		http:    &fasthttp.Client{Name: "webrtc-ingest-processor"},
	}
}

func (n *RelayNotifier) NotifyCandidate(ctx context.Context, sessionID string, candidate webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to encode candidate: %w", err)
	}
	payload, err := json.Marshal(api.Envelope{
		Type:      api.EnvelopeTypeProcessingCandidate,
		SessionID: sessionID,
		Candidate: raw,
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.baseURL + EndpointProcessingCandidate)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(n.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := n.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("failed to reach relay: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status > 299 {
		return &StatusError{Endpoint: EndpointProcessingCandidate, StatusCode: status, Detail: string(resp.Body())}
	}
	return nil
}
