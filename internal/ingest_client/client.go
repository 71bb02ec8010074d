package ingest_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	SignallingUrl string
	ClientID      string
}

// EnvelopeError is an error envelope sent by the relay.
type EnvelopeError struct {
	Code    api.ErrorCode
	Message string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("relay error %s: %s", e.Code, e.Message)
}

// Client is one media source talking to the relay over the client channel.
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.Mutex
}

func Dial(ctx context.Context, config Config) (*Client, error) {
	wsURL, err := webSocketClientUrl(config)
	if err != nil {
		return nil, err
	}
	slog.Debug("connecting to relay", "url", wsURL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	return &Client{config: config, conn: conn}, nil
}

func (c *Client) send(env api.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) SendOffer(offer webrtc.SessionDescription) error {
	return c.send(api.Envelope{Type: api.EnvelopeTypeOffer, SDP: offer.SDP})
}

func (c *Client) SendCandidate(init webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(init.Candidate)
	if err != nil {
		return err
	}
	return c.send(api.Envelope{
		Type:          api.EnvelopeTypeCandidate,
		Candidate:     raw,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	})
}

// ReadEnvelope blocks for the next envelope from the relay.
func (c *Client) ReadEnvelope() (api.Envelope, error) {
	var env api.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return api.Envelope{}, err
	}
	return env, nil
}

// Publish offers pc to the relay and applies the answer. Candidates gathered
// by pc travel inside the offer; candidates the relay sends back after the
// answer are handed to onCandidate when it is not nil.
func (c *Client) Publish(ctx context.Context, pc *webrtc.PeerConnection, onCandidate func(webrtc.ICECandidateInit)) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.SendOffer(*pc.LocalDescription()); err != nil {
		return fmt.Errorf("failed to send offer: %w", err)
	}

	answer, err := c.awaitAnswer(ctx)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("failed to apply answer: %w", err)
	}

	if onCandidate != nil {
		go c.readCandidates(onCandidate)
	}
	return nil
}

func (c *Client) awaitAnswer(ctx context.Context) (string, error) {
	type result struct {
		sdp string
		err error
	}
	done := make(chan result, 1)
	go func() {
		for {
			env, err := c.ReadEnvelope()
			if err != nil {
				done <- result{err: err}
				return
			}
			switch env.Type {
			case api.EnvelopeTypeAnswer:
				done <- result{sdp: env.SDP}
				return
			case api.EnvelopeTypeError:
				done <- result{err: &EnvelopeError{Code: env.Code, Message: env.Error}}
				return
			}
		}
	}()

	select {
	case r := <-done:
		return r.sdp, r.err
	case <-ctx.Done():
		_ = c.conn.Close()
		return "", ctx.Err()
	}
}

func (c *Client) readCandidates(onCandidate func(webrtc.ICECandidateInit)) {
	for {
		env, err := c.ReadEnvelope()
		if err != nil {
			return
		}
		if env.Type != api.EnvelopeTypeCandidate {
			continue
		}
		init, err := env.CandidateInit()
		if err != nil {
			slog.Warn("ignoring candidate from relay", "error", err)
			continue
		}
		onCandidate(init)
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func webSocketClientUrl(config Config) (string, error) {
	baseUrl := strings.TrimRight(config.SignallingUrl, "/")
	if strings.HasPrefix(baseUrl, "http") {
		baseUrl = "ws" + baseUrl[4:]
	}
	if !strings.HasPrefix(baseUrl, "ws://") && !strings.HasPrefix(baseUrl, "wss://") {
		return "", errors.New("ingest_client: signalling url must be http(s) or ws(s)")
	}
	wsURL := baseUrl + "/ws"
	if config.ClientID != "" {
		wsURL += "?clientId=" + url.QueryEscape(config.ClientID)
	}
	return wsURL, nil
}
