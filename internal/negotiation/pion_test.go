package negotiation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/candidate"
	"github.com/irdkwmnsb/webrtc-ingest/internal/config"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/repository/memory"
	"github.com/irdkwmnsb/webrtc-ingest/internal/service"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestNewAPIRejectsBadPortRange(t *testing.T) {
	cfg := config.DefaultAppConfig().WebRTC
	cfg.PortMin, cfg.PortMax = 20000, 10000

	_, err := NewAPI(cfg)
	require.Error(t, err)
}

func TestPionOfferAnswer(t *testing.T) {
	pionAPI, err := NewAPI(config.DefaultAppConfig().WebRTC)
	require.NoError(t, err)

	registry := service.NewSessionRegistry(memory.NewSessionRepository())
	engine := NewEngine(registry, NewPionFactory(pionAPI, webrtc.Configuration{}), &fakeSink{},
		WithGatheringTimeout(3*time.Second))
	t.Cleanup(engine.Close)

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "video", "client")
	require.NoError(t, err)
	_, err = client.AddTrack(track)
	require.NoError(t, err)

	offer, err := client.CreateOffer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(client)
	require.NoError(t, client.SetLocalDescription(offer))
	select {
	case <-gathered:
	case <-time.After(5 * time.Second):
		t.Fatal("client gathering did not finish")
	}
	offerSDP := client.LocalDescription().SDP

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	answer, sessionID, err := engine.HandleOffer(ctx, "", offerSDP)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	require.Contains(t, answer, "m=video")
	require.NoError(t, client.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}))

	s, err := registry.Lookup(sessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateNegotiated, s.State)

	for _, line := range strings.Split(offerSDP, "\r\n") {
		value, ok := strings.CutPrefix(line, "a=")
		if !ok || !strings.HasPrefix(value, "candidate:") {
			continue
		}
		rec, err := candidate.Parse(value, "0", 0)
		if err != nil {
			continue
		}
		require.NoError(t, engine.HandleCandidate(ctx, sessionID, rec))
		break
	}

	require.NoError(t, registry.Close(sessionID))
	require.Empty(t, engine.Sessions())
}
