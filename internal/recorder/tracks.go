package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// TrackRecorder writes whole inbound tracks into container files, one file
// per track, named after the session and the track.
type TrackRecorder struct {
	dir string
	now func() time.Time
}

func NewTrackRecorder(dir string) (*TrackRecorder, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return &TrackRecorder{dir: dir, now: time.Now}, nil
}

// Open returns a nil writer for codecs without a container writer.
func (r *TrackRecorder) Open(sessionID string, track domain.RemoteTrack) (media.Writer, error) {
	if !validPathElement(sessionID) {
		return nil, fmt.Errorf("%q: %w", sessionID, ErrInvalidSessionID)
	}
	codec := track.Codec()
	base := filepath.Join(r.dir, fmt.Sprintf("%s_%s_%s",
		r.now().Format("2006_01_02_15_04_05"), sessionID, sanitizeTrackID(track.ID())))

	var (
		writer   media.Writer
		filename string
		err      error
	)
	switch strings.ToLower(codec.MimeType) {
	case strings.ToLower(webrtc.MimeTypeOpus):
		filename = base + "_audio.ogg"
		channels := codec.Channels
		if channels == 0 {
			channels = 2
		}
		writer, err = oggwriter.New(filename, codec.ClockRate, channels)
	case strings.ToLower(webrtc.MimeTypeVP8), strings.ToLower(webrtc.MimeTypeVP9):
		filename = base + ".ivf"
		writer, err = ivfwriter.New(filename, ivfwriter.WithCodec(codec.MimeType))
	case strings.ToLower(webrtc.MimeTypeH264):
		filename = base + ".h264"
		writer, err = h264writer.New(filename)
	default:
		slog.Warn("track not recorded, unsupported mime type", "sessionID", sessionID, "mimeType", codec.MimeType)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}

	slog.Info("recording track", "sessionID", sessionID, "mimeType", codec.MimeType, "outputFile", filename)
	return writer, nil
}

func sanitizeTrackID(id string) string {
	if id == "" {
		return "track"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
