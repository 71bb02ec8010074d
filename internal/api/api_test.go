package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const line = "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host"

func TestEnvelopeConstructorsWireFormat(t *testing.T) {
	b, err := json.Marshal(NewAnswerEnvelope("v=0"))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"answer","sdp":"v=0"}`, string(b))

	raw := json.RawMessage(`{"candidate":"` + line + `","sdpMid":"0","sdpMLineIndex":0}`)
	b, err = json.Marshal(NewCandidateEnvelope(raw))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"candidate","candidate":`+string(raw)+`}`, string(b))

	b, err = json.Marshal(NewErrorEnvelope(ErrorCodeNoActiveSession, errors.New("no active session")))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","code":"no_active_session","error":"no active session"}`, string(b))
}

func TestEnvelopeCandidateInit(t *testing.T) {
	t.Run("string line", func(t *testing.T) {
		var e Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"type":"candidate","candidate":"`+line+`","sdpMid":"0","sdpMLineIndex":1}`), &e))
		init, err := e.CandidateInit()
		require.NoError(t, err)
		require.Equal(t, line, init.Candidate)
		require.Equal(t, "0", *init.SDPMid)
		require.Equal(t, uint16(1), *init.SDPMLineIndex)
	})

	t.Run("object", func(t *testing.T) {
		var e Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"type":"candidate","candidate":{"candidate":"`+line+`","sdpMid":"video","sdpMLineIndex":2}}`), &e))
		init, err := e.CandidateInit()
		require.NoError(t, err)
		require.Equal(t, line, init.Candidate)
		require.Equal(t, "video", *init.SDPMid)
		require.Equal(t, uint16(2), *init.SDPMLineIndex)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Envelope{Type: EnvelopeTypeCandidate}.CandidateInit()
		require.ErrorIs(t, err, ErrMissingCandidate)
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := Envelope{Type: EnvelopeTypeCandidate, Candidate: json.RawMessage(`42`)}.CandidateInit()
		require.Error(t, err)
	})
}

func TestPeerConnectionConfigURLForms(t *testing.T) {
	var fromJSON PeerConnectionConfig
	require.NoError(t, json.Unmarshal([]byte(`{"iceServers":[{"urls":"stun:a:3478"},{"urls":["turn:b:3478","turns:b:5349"],"username":"u","credential":"p"}]}`), &fromJSON))

	var fromYAML PeerConnectionConfig
	require.NoError(t, yaml.Unmarshal([]byte(`
iceServers:
  - urls: stun:a:3478
  - urls: [turn:b:3478, turns:b:5349]
    username: u
    credential: p
`), &fromYAML))

	require.Equal(t, fromJSON, fromYAML)

	cfg, err := fromYAML.WebrtcConfiguration()
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 2)
	require.Equal(t, []string{"stun:a:3478"}, cfg.ICEServers[0].URLs)
	require.Equal(t, "p", cfg.ICEServers[1].Credential)
}

func TestPeerConnectionConfigValidation(t *testing.T) {
	_, err := PeerConnectionConfig{IceServers: []IceServer{{URLs: URLList{"turn:b:3478"}}}}.WebrtcConfiguration()
	require.Error(t, err)

	_, err = PeerConnectionConfig{IceServers: []IceServer{{URLs: URLList{"http://b"}}}}.WebrtcConfiguration()
	require.Error(t, err)

	_, err = PeerConnectionConfig{IceServers: []IceServer{{URLs: URLList{" "}}}}.WebrtcConfiguration()
	require.Error(t, err)

	cfg, err := DefaultPeerConnectionConfig().WebrtcConfiguration()
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 1)
}
