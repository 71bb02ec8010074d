package recorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

type staticTrack struct {
	id    string
	codec webrtc.RTPCodecParameters
}

func (t staticTrack) ID() string                       { return t.id }
func (t staticTrack) Kind() webrtc.RTPCodecType        { return webrtc.RTPCodecTypeVideo }
func (t staticTrack) Codec() webrtc.RTPCodecParameters { return t.codec }
func (t staticTrack) SSRC() webrtc.SSRC                { return 1 }

func (t staticTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, os.ErrClosed
}

func trackWith(mimeType string, clockRate uint32, channels uint16) staticTrack {
	return staticTrack{
		id: "{a1b2}",
		codec: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: mimeType, ClockRate: clockRate, Channels: channels},
		},
	}
}

func TestDiskSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewDiskSink(dir)

	frame := domain.Frame{SessionID: "s1", TrackID: "video0", MimeType: webrtc.MimeTypeVP8, Data: []byte{9, 8, 7}}
	require.NoError(t, sink.Accept(frame, 1))
	require.NoError(t, sink.Accept(frame, 12))

	data, err := os.ReadFile(filepath.Join(dir, "s1", "video0", "frame_00001.vp8"))
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, data)
	require.FileExists(t, filepath.Join(dir, "s1", "video0", "frame_00012.vp8"))

	frame.MimeType = webrtc.MimeTypeH264
	require.NoError(t, sink.Accept(frame, 3))
	require.FileExists(t, filepath.Join(dir, "s1", "video0", "frame_00003.h264"))
}

func TestDiskSinkSeparatesTracks(t *testing.T) {
	dir := t.TempDir()
	sink := NewDiskSink(dir)

	camera := domain.Frame{SessionID: "s1", TrackID: "camera", MimeType: webrtc.MimeTypeVP8, Data: []byte{1}}
	screen := domain.Frame{SessionID: "s1", TrackID: "{screen/0}", MimeType: webrtc.MimeTypeVP8, Data: []byte{2}}
	require.NoError(t, sink.Accept(camera, 1))
	require.NoError(t, sink.Accept(screen, 1))

	data, err := os.ReadFile(filepath.Join(dir, "s1", "camera", "frame_00001.vp8"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, data)

	data, err = os.ReadFile(filepath.Join(dir, "s1", "_screen_0_", "frame_00001.vp8"))
	require.NoError(t, err)
	require.Equal(t, []byte{2}, data)
}

func TestDiskSinkRejectsEscapingSessionIDs(t *testing.T) {
	sink := NewDiskSink(t.TempDir())

	for _, id := range []string{"", "..", "../x", "a/b", `a\b`, "/abs"} {
		err := sink.Accept(domain.Frame{SessionID: id, MimeType: webrtc.MimeTypeVP8}, 1)
		require.ErrorIs(t, err, ErrInvalidSessionID, id)
	}
}

func TestCodecExtension(t *testing.T) {
	require.Equal(t, "vp9", codecExtension(webrtc.MimeTypeVP9))
	require.Equal(t, "bin", codecExtension("garbage"))
	require.Equal(t, "bin", codecExtension("video/"))
}

func TestTrackRecorderContainers(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewTrackRecorder(filepath.Join(dir, "records"))
	require.NoError(t, err)
	rec.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	cases := []struct {
		track  staticTrack
		file   string
		header string
	}{
		{trackWith(webrtc.MimeTypeVP8, 90000, 0), "2024_05_01_10_00_00_s1__a1b2_.ivf", "DKIF"},
		{trackWith(webrtc.MimeTypeVP9, 90000, 0), "2024_05_01_10_00_00_s1__a1b2_.ivf", "DKIF"},
		{trackWith(webrtc.MimeTypeOpus, 48000, 2), "2024_05_01_10_00_00_s1__a1b2__audio.ogg", "OggS"},
	}
	for _, tc := range cases {
		t.Run(tc.track.codec.MimeType, func(t *testing.T) {
			writer, err := rec.Open("s1", tc.track)
			require.NoError(t, err)
			require.NotNil(t, writer)
			require.NoError(t, writer.Close())

			data, err := os.ReadFile(filepath.Join(dir, "records", tc.file))
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(data), len(tc.header))
			require.Equal(t, tc.header, string(data[:len(tc.header)]))
		})
	}

	writer, err := rec.Open("s1", trackWith(webrtc.MimeTypeH264, 90000, 0))
	require.NoError(t, err)
	require.NotNil(t, writer)
	require.NoError(t, writer.Close())
	require.FileExists(t, filepath.Join(dir, "records", "2024_05_01_10_00_00_s1__a1b2_.h264"))
}

func TestTrackRecorderSkipsUnknownCodecs(t *testing.T) {
	rec, err := NewTrackRecorder(t.TempDir())
	require.NoError(t, err)

	writer, err := rec.Open("s1", trackWith("video/AV2", 90000, 0))
	require.NoError(t, err)
	require.Nil(t, writer)

	_, err = rec.Open("..", trackWith(webrtc.MimeTypeVP8, 90000, 0))
	require.ErrorIs(t, err, ErrInvalidSessionID)
}
