// Package processing talks to the processing node over its HTTP API.
package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
	"github.com/pion/webrtc/v4"
	"github.com/valyala/fasthttp"
)

const (
	EndpointProcessOffer     = "/process_offer"
	EndpointProcessCandidate = "/process_candidate"
)

// StatusError is a non-2xx answer of the processing node.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Detail)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrUpstreamUnavailable
}

// Client forwards offers and candidates of relay sessions to the processing node.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "webrtc-ingest-relay",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// ProcessOffer forwards the offer and returns the answer SDP.
func (c *Client) ProcessOffer(ctx context.Context, sessionID, sdp string) (string, error) {
	var resp api.OfferResponse
	err := c.postJSON(ctx, EndpointProcessOffer, api.OfferRequest{Offer: sdp, SessionID: sessionID}, &resp)
	if err != nil {
		return "", err
	}
	if resp.SDP == "" {
		return "", fmt.Errorf("%s returned an empty answer: %w", EndpointProcessOffer, domain.ErrUpstreamUnavailable)
	}
	return resp.SDP, nil
}

func (c *Client) ProcessCandidate(ctx context.Context, sessionID string, candidate webrtc.ICECandidateInit) error {
	return c.postJSON(ctx, EndpointProcessCandidate, api.CandidateRequest{Candidate: &candidate, SessionID: sessionID}, nil)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, result).Inc()
		metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", endpoint, domain.ErrUpstreamUnavailable, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%s: %w: %w", endpoint, domain.ErrUpstreamUnavailable, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		var detail api.ErrorResponse
		_ = json.Unmarshal(resp.Body(), &detail)
		return &StatusError{Endpoint: endpoint, StatusCode: status, Detail: detail.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		slog.Warn("processing node sent an undecodable body", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%s: decode response: %w: %w", endpoint, domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
