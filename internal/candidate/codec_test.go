package candidate

import (
	"errors"
	"strings"
	"testing"

	"github.com/pion/ice/v4"
	"github.com/stretchr/testify/require"
)

const (
	hostLine  = "candidate:842163049 1 udp 1677729535 192.168.1.10 54400 typ host"
	srflxLine = "candidate:842163049 1 udp 1677729535 203.0.113.7 46154 typ srflx raddr 10.0.0.5 rport 46154"
	relayLine = "candidate:3745641137 1 udp 41885439 2001:db8::1 3478 typ relay raddr 2001:db8::2 rport 61337"
	chromeTCP = "candidate:1052214920 1 tcp 1518280447 10.0.0.5 9 typ host tcptype active generation 0 ufrag Xk2c network-id 1"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
	}{
		{
			name: "host ipv4",
			line: hostLine,
			want: Record{
				Foundation: "842163049", Component: 1, Protocol: "udp", Priority: 1677729535,
				IP: "192.168.1.10", Port: 54400, Type: TypeHost, SDPMid: "0",
			},
		},
		{
			name: "srflx with related address",
			line: srflxLine,
			want: Record{
				Foundation: "842163049", Component: 1, Protocol: "udp", Priority: 1677729535,
				IP: "203.0.113.7", Port: 46154, Type: TypeSrflx,
				Related: &RelatedAddress{Address: "10.0.0.5", Port: 46154}, SDPMid: "0",
			},
		},
		{
			name: "relay ipv6",
			line: relayLine,
			want: Record{
				Foundation: "3745641137", Component: 1, Protocol: "udp", Priority: 41885439,
				IP: "2001:db8::1", Port: 3478, Type: TypeRelay,
				Related: &RelatedAddress{Address: "2001:db8::2", Port: 61337}, SDPMid: "0",
			},
		},
		{
			name: "browser extensions kept in order",
			line: chromeTCP,
			want: Record{
				Foundation: "1052214920", Component: 1, Protocol: "tcp", Priority: 1518280447,
				IP: "10.0.0.5", Port: 9, Type: TypeHost, SDPMid: "0",
				Extensions: []Extension{
					{Key: "tcptype", Value: "active"},
					{Key: "generation", Value: "0"},
					{Key: "ufrag", Value: "Xk2c"},
					{Key: "network-id", Value: "1"},
				},
			},
		},
		{
			name: "opaque component and ice-char foundation",
			line: "candidate:a+b/C 7 UDP 0 0.0.0.0 0 typ prflx",
			want: Record{
				Foundation: "a+b/C", Component: 7, Protocol: "UDP", Priority: 0,
				IP: "0.0.0.0", Port: 0, Type: TypePrflx, SDPMid: "0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line, "0", 0)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.line, Serialize(got))
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"missing prefix", "842163049 1 udp 1677729535 192.168.1.10 54400 typ host", "prefix"},
		{"bad ip", "candidate:1 1 udp 1 bad_ip 1 typ host", "ip"},
		{"hostname ip", "candidate:1 1 udp 1 b3c1.local 1 typ host", "ip"},
		{"zoned ip", "candidate:1 1 udp 1 fe80::1%eth0 1 typ host", "ip"},
		{"negative component", "candidate:1 -1 udp 1 10.0.0.1 1 typ host", "component"},
		{"priority overflow", "candidate:1 1 udp 4294967296 10.0.0.1 1 typ host", "priority"},
		{"port overflow", "candidate:1 1 udp 1 10.0.0.1 65536 typ host", "port"},
		{"non numeric port", "candidate:1 1 udp 1 10.0.0.1 abc typ host", "port"},
		{"uppercase typ", "candidate:1 1 udp 1 10.0.0.1 1 TYP host", "typ"},
		{"unknown type", "candidate:1 1 udp 1 10.0.0.1 1 typ peer", "type"},
		{"missing type", "candidate:1 1 udp 1 10.0.0.1 1 typ", "type"},
		{"double space", "candidate:1 1  udp 1 10.0.0.1 1 typ host", "protocol"},
		{"trailing garbage", hostLine + " garbage", "attribute"},
		{"trailing space", hostLine + " ", "attribute"},
		{"raddr without rport", "candidate:1 1 udp 1 10.0.0.1 1 typ srflx raddr 10.0.0.2", "rport"},
		{"rport without raddr", "candidate:1 1 udp 1 10.0.0.1 1 typ srflx rport 9", "attribute"},
		{"bad related port", "candidate:1 1 udp 1 10.0.0.1 1 typ srflx raddr 10.0.0.2 rport x", "rport"},
		{"extension without value", hostLine + " generation", "generation"},
		{"foundation too long", "candidate:" + strings.Repeat("a", 33) + " 1 udp 1 10.0.0.1 1 typ host", "foundation"},
		{"foundation bad char", "candidate:ab-c 1 udp 1 10.0.0.1 1 typ host", "foundation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line, "0", 0)
			require.ErrorIs(t, err, ErrMalformedCandidate)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			require.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	records := []Record{
		{Foundation: "1", Component: 2, Protocol: "udp", Priority: 2130706431, IP: "::1", Port: 5000, Type: TypeHost, SDPMid: "video", SDPMLineIndex: 1},
		{Foundation: "4", Component: 1, Protocol: "tcp", Priority: 1, IP: "198.51.100.1", Port: 443, Type: TypeRelay,
			Related: &RelatedAddress{Address: "0.0.0.0", Port: 0}, Extensions: []Extension{{Key: "tcptype", Value: "passive"}}, SDPMid: "1"},
	}
	for _, r := range records {
		got, err := Parse(Serialize(r), r.SDPMid, r.SDPMLineIndex)
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
}

func TestICECandidateInitBridge(t *testing.T) {
	r, err := Parse(srflxLine, "0", 0)
	require.NoError(t, err)

	init := ToICECandidateInit(r)
	require.Equal(t, srflxLine, init.Candidate)
	require.Equal(t, "0", *init.SDPMid)
	require.Equal(t, uint16(0), *init.SDPMLineIndex)

	back, err := FromICECandidateInit(init)
	require.NoError(t, err)
	require.Equal(t, r, back)
}

func TestSerializedCandidatesMatchPion(t *testing.T) {
	for _, line := range []string{hostLine, srflxLine, relayLine} {
		r, err := Parse(line, "0", 0)
		require.NoError(t, err)

		c, err := ice.UnmarshalCandidate(strings.TrimPrefix(Serialize(r), "candidate:"))
		require.NoError(t, err, line)
		require.Equal(t, r.Foundation, c.Foundation())
		require.Equal(t, uint16(r.Component), c.Component())
		require.Equal(t, r.Priority, c.Priority())
		require.Equal(t, r.IP, c.Address())
		require.Equal(t, int(r.Port), c.Port())
		require.Equal(t, string(r.Type), c.Type().String())
		if r.Related != nil {
			require.NotNil(t, c.RelatedAddress())
			require.Equal(t, r.Related.Address, c.RelatedAddress().Address)
			require.Equal(t, int(r.Related.Port), c.RelatedAddress().Port)
		}
	}
}
