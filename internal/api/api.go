package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"gopkg.in/yaml.v3"
)

// PeerConnectionConfig is the ICE part of a peer connection configuration as
// it appears in config files.
type PeerConnectionConfig struct {
	IceServers []IceServer `json:"iceServers" yaml:"iceServers"`
}

type IceServer struct {
	URLs       URLList `json:"urls" yaml:"urls"`
	Username   string  `json:"username,omitempty" yaml:"username,omitempty"`
	Credential string  `json:"credential,omitempty" yaml:"credential,omitempty"`
}

// URLList accepts either a single URL or a list of URLs.
type URLList []string

func (u *URLList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*u = URLList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*u = many
	return nil
}

func (u *URLList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*u = URLList{single}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*u = many
	return nil
}

func DefaultPeerConnectionConfig() PeerConnectionConfig {
	return PeerConnectionConfig{
		IceServers: []IceServer{
			{URLs: URLList{"stun:stun.l.google.com:19302"}},
		},
	}
}

// WebrtcConfiguration validates the servers and converts them for pion.
func (c PeerConnectionConfig) WebrtcConfiguration() (webrtc.Configuration, error) {
	servers := make([]webrtc.ICEServer, 0, len(c.IceServers))
	for i, s := range c.IceServers {
		urls := make([]string, 0, len(s.URLs))
		for _, url := range s.URLs {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			urls = append(urls, url)
		}
		server := webrtc.ICEServer{
			URLs:     urls,
			Username: strings.TrimSpace(s.Username),
		}
		if strings.TrimSpace(s.Credential) != "" {
			server.Credential = s.Credential
		}
		if err := validateICEServer(server); err != nil {
			return webrtc.Configuration{}, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		servers = append(servers, server)
	}
	return webrtc.Configuration{ICEServers: servers}, nil
}

func validateICEServer(s webrtc.ICEServer) error {
	if len(s.URLs) == 0 {
		return fmt.Errorf("urls must not be empty")
	}
	needsCredentials := false
	for _, url := range s.URLs {
		switch {
		case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
		case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
			needsCredentials = true
		default:
			return fmt.Errorf("unsupported ICE url %q", url)
		}
	}
	if needsCredentials && (s.Username == "" || s.Credential == nil) {
		return fmt.Errorf("turn urls require username and credential")
	}
	return nil
}
