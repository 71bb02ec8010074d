package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Validate rejects configurations the binaries cannot start with.
func (c AppConfig) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Processing.Port <= 0 || c.Processing.Port > 65535 {
		errs = append(errs, fmt.Errorf("processing.port %d out of range", c.Processing.Port))
	}
	if err := validateBaseURL("server.processingUrl", c.Server.ProcessingURL); err != nil {
		errs = append(errs, err)
	}
	if c.Processing.TrickleCandidates {
		if err := validateBaseURL("processing.relayUrl", c.Processing.RelayURL); err != nil {
			errs = append(errs, err)
		}
	}
	if (c.Server.TLSCrtFile == nil) != (c.Server.TLSKeyFile == nil) {
		errs = append(errs, errors.New("server.tlsCrtFile and server.tlsKeyFile must be set together"))
	}
	if c.Processing.GatheringTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("processing.gatheringTimeoutMs %d must be positive", c.Processing.GatheringTimeoutMs))
	}
	if len(c.WebRTC.Codecs) == 0 {
		errs = append(errs, errors.New("webrtc.codecs must not be empty"))
	}
	if c.WebRTC.PortMin > c.WebRTC.PortMax {
		errs = append(errs, fmt.Errorf("webrtc.portMin %d is greater than webrtc.portMax %d", c.WebRTC.PortMin, c.WebRTC.PortMax))
	}
	if _, err := c.WebRTC.PeerConnectionConfig.WebrtcConfiguration(); err != nil {
		errs = append(errs, fmt.Errorf("webrtc.peerConnectionConfig: %w", err))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q must be an http(s) url", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host", field, raw)
	}
	return nil
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c ServerConfig) PingPeriod() time.Duration {
	return time.Duration(c.PingInterval) * time.Millisecond
}

func (c ProcessingConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ProcessingConfig) GatheringTimeout() time.Duration {
	return time.Duration(c.GatheringTimeoutMs) * time.Millisecond
}

func (c ProcessingConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
