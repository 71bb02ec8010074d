package config

import (
	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/pion/webrtc/v4"
)

type AppConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Processing ProcessingConfig `json:"processing" yaml:"processing"`
	WebRTC     WebRTCConfig     `json:"webrtc" yaml:"webrtc"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// ServerConfig configures the signalling relay.
type ServerConfig struct {
	Host             string  `json:"host" yaml:"host"`
	Port             int     `json:"port" yaml:"port"`
	ProcessingURL    string  `json:"processingUrl" yaml:"processingUrl"`
	RequestTimeoutMs int     `json:"requestTimeoutMs" yaml:"requestTimeoutMs"`
	PingInterval     int     `json:"pingInterval" yaml:"pingInterval"` // milliseconds, 0 disables pings
	TLSCrtFile       *string `json:"tlsCrtFile" yaml:"tlsCrtFile"`
	TLSKeyFile       *string `json:"tlsKeyFile" yaml:"tlsKeyFile"`
}

// ProcessingConfig configures the processing node.
type ProcessingConfig struct {
	Host               string `json:"host" yaml:"host"`
	Port               int    `json:"port" yaml:"port"`
	FramesDir          string `json:"framesDirectory" yaml:"framesDirectory"`
	RecordTracks       bool   `json:"recordTracks" yaml:"recordTracks"`
	RecordingsDir      string `json:"recordingsDirectory" yaml:"recordingsDirectory"`
	RelayURL           string `json:"relayUrl" yaml:"relayUrl"`
	TrickleCandidates  bool   `json:"trickleCandidates" yaml:"trickleCandidates"`
	GatheringTimeoutMs int    `json:"gatheringTimeoutMs" yaml:"gatheringTimeoutMs"`
	SweepIntervalSec   int    `json:"sweepIntervalSec" yaml:"sweepIntervalSec"`
}

type WebRTCConfig struct {
	PortMin              uint16                   `json:"portMin" yaml:"portMin"`
	PortMax              uint16                   `json:"portMax" yaml:"portMax"`
	PublicIP             string                   `json:"publicIp" yaml:"publicIp"`
	PeerConnectionConfig api.PeerConnectionConfig `json:"peerConnectionConfig" yaml:"peerConnectionConfig"`
	Codecs               []Codec                  `json:"codecs" yaml:"codecs"`
	DisableAudio         bool                     `json:"disableAudio" yaml:"disableAudio"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type Codec struct {
	Params webrtc.RTPCodecParameters `json:"params"`
	Type   webrtc.RTPCodecType       `json:"type"`
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8081,
			ProcessingURL:    "http://127.0.0.1:9000",
			RequestTimeoutMs: 10000,
			PingInterval:     30000,
		},
		Processing: ProcessingConfig{
			Host:               "0.0.0.0",
			Port:               9000,
			FramesDir:          "./video",
			RecordingsDir:      "./records",
			RelayURL:           "http://127.0.0.1:8081",
			GatheringTimeoutMs: 5000,
			SweepIntervalSec:   10,
		},
		WebRTC: WebRTCConfig{
			PortMin:              10000,
			PortMax:              20000,
			PeerConnectionConfig: api.DefaultPeerConnectionConfig(),
			Codecs:               DefaultCodecs(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var videoFeedback = []webrtc.RTCPFeedback{
	{Type: "nack"},
	{Type: "nack", Parameter: "pli"},
	{Type: "ccm", Parameter: "fir"},
	{Type: "goog-remb"},
}

// DefaultCodecs covers what mobile WebRTC stacks offer by default.
func DefaultCodecs() []Codec {
	return []Codec{
		{
			Params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:     webrtc.MimeTypeVP8,
					ClockRate:    90000,
					RTCPFeedback: videoFeedback,
				},
				PayloadType: 96,
			},
			Type: webrtc.RTPCodecTypeVideo,
		},
		{
			Params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:     webrtc.MimeTypeVP9,
					ClockRate:    90000,
					SDPFmtpLine:  "profile-id=0",
					RTCPFeedback: videoFeedback,
				},
				PayloadType: 98,
			},
			Type: webrtc.RTPCodecTypeVideo,
		},
		{
			Params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:     webrtc.MimeTypeH264,
					ClockRate:    90000,
					SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
					RTCPFeedback: videoFeedback,
				},
				PayloadType: 102,
			},
			Type: webrtc.RTPCodecTypeVideo,
		},
		{
			Params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:    webrtc.MimeTypeOpus,
					ClockRate:   48000,
					Channels:    2,
					SDPFmtpLine: "minptime=10;useinbandfec=1",
				},
				PayloadType: 111,
			},
			Type: webrtc.RTPCodecTypeAudio,
		},
	}
}
