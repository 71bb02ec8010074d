package config

import (
	"strings"

	"github.com/irdkwmnsb/webrtc-ingest/internal/api"
	"github.com/pion/webrtc/v4"
)

type RawServerConfig struct {
	Host             *string `yaml:"host" json:"host"`
	Port             *int    `yaml:"port" json:"port"`
	ProcessingURL    *string `yaml:"processingUrl" json:"processingUrl"`
	RequestTimeoutMs *int    `yaml:"requestTimeoutMs" json:"requestTimeoutMs"`
	PingInterval     *int    `yaml:"pingInterval" json:"pingInterval"`
	TLSCrtFile       *string `yaml:"tlsCrtFile" json:"tlsCrtFile"`
	TLSKeyFile       *string `yaml:"tlsKeyFile" json:"tlsKeyFile"`
}

// ApplyTo overwrites every field of cfg that the file sets, zero values included.
func (r RawServerConfig) ApplyTo(cfg *ServerConfig) {
	if r.Host != nil {
		cfg.Host = *r.Host
	}
	if r.Port != nil {
		cfg.Port = *r.Port
	}
	if r.ProcessingURL != nil {
		cfg.ProcessingURL = strings.TrimRight(*r.ProcessingURL, "/")
	}
	if r.RequestTimeoutMs != nil {
		cfg.RequestTimeoutMs = *r.RequestTimeoutMs
	}
	if r.PingInterval != nil {
		cfg.PingInterval = *r.PingInterval
	}
	if r.TLSCrtFile != nil {
		cfg.TLSCrtFile = r.TLSCrtFile
	}
	if r.TLSKeyFile != nil {
		cfg.TLSKeyFile = r.TLSKeyFile
	}
}

type RawProcessingConfig struct {
	Host               *string `yaml:"host" json:"host"`
	Port               *int    `yaml:"port" json:"port"`
	FramesDir          *string `yaml:"framesDirectory" json:"framesDirectory"`
	RecordTracks       *bool   `yaml:"recordTracks" json:"recordTracks"`
	RecordingsDir      *string `yaml:"recordingsDirectory" json:"recordingsDirectory"`
	RelayURL           *string `yaml:"relayUrl" json:"relayUrl"`
	TrickleCandidates  *bool   `yaml:"trickleCandidates" json:"trickleCandidates"`
	GatheringTimeoutMs *int    `yaml:"gatheringTimeoutMs" json:"gatheringTimeoutMs"`
	SweepIntervalSec   *int    `yaml:"sweepIntervalSec" json:"sweepIntervalSec"`
}

func (r RawProcessingConfig) ApplyTo(cfg *ProcessingConfig) {
	if r.Host != nil {
		cfg.Host = *r.Host
	}
	if r.Port != nil {
		cfg.Port = *r.Port
	}
	if r.FramesDir != nil {
		cfg.FramesDir = *r.FramesDir
	}
	if r.RecordTracks != nil {
		cfg.RecordTracks = *r.RecordTracks
	}
	if r.RecordingsDir != nil {
		cfg.RecordingsDir = *r.RecordingsDir
	}
	if r.RelayURL != nil {
		cfg.RelayURL = strings.TrimRight(*r.RelayURL, "/")
	}
	if r.TrickleCandidates != nil {
		cfg.TrickleCandidates = *r.TrickleCandidates
	}
	if r.GatheringTimeoutMs != nil {
		cfg.GatheringTimeoutMs = *r.GatheringTimeoutMs
	}
	if r.SweepIntervalSec != nil {
		cfg.SweepIntervalSec = *r.SweepIntervalSec
	}
}

type RawWebRTCConfig struct {
	PortMin              *uint16                   `yaml:"portMin" json:"portMin"`
	PortMax              *uint16                   `yaml:"portMax" json:"portMax"`
	PublicIP             *string                   `yaml:"publicIp" json:"publicIp"`
	PeerConnectionConfig *api.PeerConnectionConfig `yaml:"peerConnectionConfig" json:"peerConnectionConfig"`
	Codecs               *[]RawCodec               `yaml:"codecs" json:"codecs"`
	DisableAudio         *bool                     `yaml:"disableAudio" json:"disableAudio"`
}

type RawCodec struct {
	Params struct {
		MimeType    string `json:"mimeType" yaml:"mimeType"`
		ClockRate   uint32 `json:"clockRate" yaml:"clockRate"`
		PayloadType uint8  `json:"payloadType" yaml:"payloadType"`
		Channels    uint16 `json:"channels" yaml:"channels"`
		SDPFmtpLine string `json:"sdpFmtpLine" yaml:"sdpFmtpLine"`
	} `json:"params" yaml:"params"`
	Type string `json:"type" yaml:"type"`
}

func (r RawWebRTCConfig) ApplyTo(cfg *WebRTCConfig) {
	if r.PortMin != nil {
		cfg.PortMin = *r.PortMin
	}
	if r.PortMax != nil {
		cfg.PortMax = *r.PortMax
	}
	if r.PublicIP != nil {
		cfg.PublicIP = *r.PublicIP
	}
	if r.PeerConnectionConfig != nil {
		cfg.PeerConnectionConfig = *r.PeerConnectionConfig
	}
	if r.Codecs != nil {
		cfg.Codecs = parseCodecs(*r.Codecs)
	}
	if r.DisableAudio != nil {
		cfg.DisableAudio = *r.DisableAudio
	}
}

type RawLogConfig struct {
	Level *string `yaml:"level" json:"level"`
}

func (r RawLogConfig) ApplyTo(cfg *LogConfig) {
	if r.Level != nil {
		cfg.Level = *r.Level
	}
}

func parseCodecs(rawCodecs []RawCodec) []Codec {
	result := make([]Codec, 0, len(rawCodecs))

	for _, rawCodec := range rawCodecs {
		capability := webrtc.RTPCodecCapability{
			MimeType:    rawCodec.Params.MimeType,
			ClockRate:   rawCodec.Params.ClockRate,
			Channels:    rawCodec.Params.Channels,
			SDPFmtpLine: rawCodec.Params.SDPFmtpLine,
		}

		if strings.HasPrefix(strings.ToLower(rawCodec.Params.MimeType), "video/") {
			capability.RTCPFeedback = videoFeedback
		}

		params := webrtc.RTPCodecParameters{
			RTPCodecCapability: capability,
			PayloadType:        webrtc.PayloadType(rawCodec.Params.PayloadType),
		}

		result = append(result, Codec{Params: params, Type: webrtc.NewRTPCodecType(rawCodec.Type)})
	}

	return result
}
