package domain

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Frame is one assembled media frame of an inbound track, still encoded.
type Frame struct {
	SessionID string
	TrackID   string
	MimeType  string
	Data      []byte
	Timestamp uint32
	Duration  time.Duration
}

// FrameSink consumes frames of inbound video tracks. seq starts at 1 for
// every track and grows by one per frame, whether or not Accept succeeded.
type FrameSink interface {
	Accept(frame Frame, seq uint64) error
}

// RemoteTrack is the read side of an inbound track. *webrtc.TrackRemote
// satisfies it.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	SSRC() webrtc.SSRC
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}
