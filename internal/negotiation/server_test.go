package negotiation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/irdkwmnsb/webrtc-ingest/internal/candidate"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/stretchr/testify/require"
)

type stubNegotiator struct {
	offerErr     error
	candidateErr error
	offers       []string
	records      []candidate.Record
}

func (n *stubNegotiator) HandleOffer(_ context.Context, sessionID, offer string) (string, string, error) {
	n.offers = append(n.offers, offer)
	if n.offerErr != nil {
		return "", sessionID, n.offerErr
	}
	if sessionID == "" {
		sessionID = "generated"
	}
	return testAnswer, sessionID, nil
}

func (n *stubNegotiator) HandleCandidate(_ context.Context, _ string, rec candidate.Record) error {
	if n.candidateErr != nil {
		return n.candidateErr
	}
	n.records = append(n.records, rec)
	return nil
}

func newTestServer(t *testing.T, negotiator Negotiator, framesDir string) *fiber.App {
	t.Helper()
	app := fiber.New()
	NewServer(app, negotiator, framesDir, time.Second).SetupRoutes()
	return app
}

func post(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()
	var raw []byte
	switch v := body.(type) {
	case string:
		raw = []byte(v)
	default:
		var err error
		raw, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return resp.StatusCode, out
}

func TestProcessOfferEndpoint(t *testing.T) {
	negotiator := &stubNegotiator{}
	app := newTestServer(t, negotiator, "")

	status, body := post(t, app, "/process_offer", api.OfferRequest{Offer: testOffer, SessionID: "s1"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, testAnswer, body["sdp"])
	require.Equal(t, "s1", body["sessionId"])

	status, body = post(t, app, "/process_offer", map[string]string{"sessionId": "s1"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "Offer SDP not provided", body["detail"])

	status, _ = post(t, app, "/process_offer", "{")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Len(t, negotiator.offers, 1)
}

func TestProcessOfferErrors(t *testing.T) {
	negotiator := &stubNegotiator{offerErr: domain.ErrNegotiationFailed}
	app := newTestServer(t, negotiator, "")

	status, body := post(t, app, "/process_offer", api.OfferRequest{Offer: testOffer})
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, "Internal Server Error", body["detail"])

	negotiator.offerErr = domain.ErrDuplicateSession
	status, _ = post(t, app, "/process_offer", api.OfferRequest{Offer: testOffer, SessionID: "s1"})
	require.Equal(t, fiber.StatusConflict, status)
}

func TestProcessCandidateEndpoint(t *testing.T) {
	negotiator := &stubNegotiator{}
	app := newTestServer(t, negotiator, "")

	mid := "0"
	status, body := post(t, app, "/process_candidate", map[string]any{
		"candidate": map[string]any{"candidate": testLine, "sdpMid": mid, "sdpMLineIndex": 0},
		"sessionId": "s1",
	})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "candidate processed", body["status"])
	require.Len(t, negotiator.records, 1)
	require.Equal(t, candidate.TypeSrflx, negotiator.records[0].Type)

	status, body = post(t, app, "/process_candidate", map[string]any{"sessionId": "s1"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "ICE candidate not provided", body["detail"])

	status, _ = post(t, app, "/process_candidate", map[string]any{
		"candidate": map[string]any{"candidate": "candidate:1 1 udp 5 example.org 9 typ host"},
	})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Len(t, negotiator.records, 1)
}

func TestProcessCandidateWithoutPeer(t *testing.T) {
	negotiator := &stubNegotiator{candidateErr: domain.ErrNoActiveSession}
	app := newTestServer(t, negotiator, "")

	request := map[string]any{"candidate": map[string]any{"candidate": testLine}}

	status, body := post(t, app, "/process_candidate", request)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "No peer connection available", body["detail"])

	negotiator.candidateErr = domain.ErrAmbiguousSession
	status, _ = post(t, app, "/process_candidate", request)
	require.Equal(t, fiber.StatusBadRequest, status)

	negotiator.candidateErr = errors.New("ice agent closed")
	status, body = post(t, app, "/process_candidate", request)
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, "Internal Server Error", body["detail"])
}

func TestStatusAndFrames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "s1", "video0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1", "video0", "frame_00001.vp8"), []byte{1, 2, 3}, 0o644))

	app := newTestServer(t, &stubNegotiator{}, dir)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var msg api.MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	require.Equal(t, statusMessage, msg.Message)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/frames/s1/video0/frame_00001.vp8", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCandidateBeforeOfferAgainstEngine(t *testing.T) {
	f := newEngineFixture(t)
	app := newTestServer(t, f.engine, "")

	request := map[string]any{"candidate": map[string]any{"candidate": testLine, "sdpMid": "0"}}
	status, body := post(t, app, "/process_candidate", request)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "No peer connection available", body["detail"])

	status, body = post(t, app, "/process_offer", api.OfferRequest{Offer: testOffer, SessionID: "s1"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "s1", body["sessionId"])

	status, _ = post(t, app, "/process_candidate", request)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, f.peer(0).addedCandidates(), 1)
}
