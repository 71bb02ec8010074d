package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const maxLatePackets = 256

// TrackRecorder opens a writer that stores a whole inbound track. It
// returns a nil writer for tracks it does not record.
type TrackRecorder interface {
	Open(sessionID string, track domain.RemoteTrack) (media.Writer, error)
}

func depacketizerFor(mimeType string) (rtp.Depacketizer, error) {
	switch strings.ToLower(mimeType) {
	case strings.ToLower(webrtc.MimeTypeVP8):
		return &codecs.VP8Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeVP9):
		return &codecs.VP9Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeH264):
		return &codecs.H264Packet{}, nil
	}
	return nil, fmt.Errorf("no depacketizer for %s", mimeType)
}

// receiveTrack reads track until it fails or ctx is done. Video packets
// are assembled into frames for sink when one is given; every packet goes
// to writer when one is given.
func receiveTrack(ctx context.Context, sessionID string, peer PeerConnection, track domain.RemoteTrack, sink domain.FrameSink, writer media.Writer) error {
	var builder *samplebuilder.SampleBuilder
	codec := track.Codec()
	if sink != nil && track.Kind() == webrtc.RTPCodecTypeVideo {
		depacketizer, err := depacketizerFor(codec.MimeType)
		if err != nil {
			return fmt.Errorf("track %s: %w: %w", track.ID(), domain.ErrTrackFailed, err)
		}
		builder = samplebuilder.New(maxLatePackets, depacketizer, codec.ClockRate)
		requestKeyframe(sessionID, peer, track)
	}

	var seq uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		packet, _, err := track.ReadRTP()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("track %s: %w: %w", track.ID(), domain.ErrTrackFailed, err)
		}

		if writer != nil {
			if err := writer.WriteRTP(packet); err != nil {
				return fmt.Errorf("track %s: failed to record packet: %w: %w", track.ID(), domain.ErrTrackFailed, err)
			}
		}
		if builder == nil {
			continue
		}

		builder.Push(packet)
		for sample := builder.Pop(); sample != nil; sample = builder.Pop() {
			seq++
			frame := domain.Frame{
				SessionID: sessionID,
				TrackID:   track.ID(),
				MimeType:  codec.MimeType,
				Data:      sample.Data,
				Timestamp: sample.PacketTimestamp,
				Duration:  sample.Duration,
			}
			if err := sink.Accept(frame, seq); err != nil {
				metrics.FramesTotal.WithLabelValues("error").Inc()
				slog.Warn("frame sink rejected frame", "sessionID", sessionID, "trackID", track.ID(), "seq", seq, "error", err)
				continue
			}
			metrics.FramesTotal.WithLabelValues("ok").Inc()
			metrics.FrameBytesTotal.Add(float64(len(sample.Data)))
		}
	}
}

func requestKeyframe(sessionID string, peer PeerConnection, track domain.RemoteTrack) {
	pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
	if err := peer.WriteRTCP([]rtcp.Packet{pli}); err != nil {
		slog.Warn("failed to request keyframe", "sessionID", sessionID, "trackID", track.ID(), "error", err)
		return
	}
	metrics.PLIRequestsTotal.Inc()
}
