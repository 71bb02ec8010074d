package negotiation

import (
	"fmt"

	"github.com/irdkwmnsb/webrtc-ingest/internal/config"
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// NewAPI builds the pion API every processing node peer connection is
// created from: configured codecs, default interceptors plus periodic PLI on
// received video, and the configured UDP port range.
func NewAPI(cfg config.WebRTCConfig) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	for _, codec := range cfg.Codecs {
		if cfg.DisableAudio && codec.Type == webrtc.RTPCodecTypeAudio {
			continue
		}
		if err := mediaEngine.RegisterCodec(codec.Params, codec.Type); err != nil {
			return nil, fmt.Errorf("failed to register codec %s: %w", codec.Params.MimeType, err)
		}
	}

	interceptorRegistry := &interceptor.Registry{}

	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	intervalPliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create PLI interceptor: %w", err)
	}
	interceptorRegistry.Add(intervalPliFactory)

	se := webrtc.SettingEngine{}
	if cfg.PublicIP != "" {
		se.SetNAT1To1IPs([]string{cfg.PublicIP}, webrtc.ICECandidateTypeHost)
	}
	if cfg.PortMin != 0 || cfg.PortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("failed to set UDP port range: %w", err)
		}
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	), nil
}

// PeerConnection is the part of a pion peer connection the engine drives.
type PeerConnection interface {
	SetRemoteDescription(desc webrtc.SessionDescription) error
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	// GatheringComplete must be called before SetLocalDescription.
	GatheringComplete() <-chan struct{}
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnTrack(f func(track domain.RemoteTrack))
	OnICECandidate(f func(candidate *webrtc.ICECandidate))
	OnICEGatheringStateChange(f func(state webrtc.ICEGatheringState))
	OnICEConnectionStateChange(f func(state webrtc.ICEConnectionState))
	OnConnectionStateChange(f func(state webrtc.PeerConnectionState))
	ConnectionState() webrtc.PeerConnectionState
	WriteRTCP(pkts []rtcp.Packet) error
	Close() error
}

// PeerFactory creates a fresh peer connection for one session.
type PeerFactory func() (PeerConnection, error)

type pionPeer struct {
	*webrtc.PeerConnection
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.PeerConnection.CreateAnswer(nil)
}

func (p *pionPeer) GatheringComplete() <-chan struct{} {
	return webrtc.GatheringCompletePromise(p.PeerConnection)
}

func (p *pionPeer) OnTrack(f func(track domain.RemoteTrack)) {
	p.PeerConnection.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f(track)
	})
}

// NewPionFactory returns a PeerFactory creating peer connections from api
// with the given ICE configuration.
func NewPionFactory(api *webrtc.API, pcConfig webrtc.Configuration) PeerFactory {
	return func() (PeerConnection, error) {
		pc, err := api.NewPeerConnection(pcConfig)
		if err != nil {
			return nil, err
		}
		return &pionPeer{PeerConnection: pc}, nil
	}
}
