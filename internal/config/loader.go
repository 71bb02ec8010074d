package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func LoadAppConfig(dir string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	var rawServer RawServerConfig
	if err := loadFileInto(dir, "server", &rawServer); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	rawServer.ApplyTo(&cfg.Server)

	var rawProcessing RawProcessingConfig
	if err := loadFileInto(dir, "processing", &rawProcessing); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	rawProcessing.ApplyTo(&cfg.Processing)

	var rawWebRTC RawWebRTCConfig
	if err := loadFileInto(dir, "webrtc", &rawWebRTC); err != nil {
		return nil, fmt.Errorf("webrtc config: %w", err)
	}
	rawWebRTC.ApplyTo(&cfg.WebRTC)

	var rawLog RawLogConfig
	if err := loadFileInto(dir, "log", &rawLog); err != nil {
		return nil, fmt.Errorf("log config: %w", err)
	}
	rawLog.ApplyTo(&cfg.Log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFileInto(dir, filenameBase string, target any) error {
	basePath := filepath.Join(dir, filenameBase)

	if f, err := os.Open(basePath + ".yaml"); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(target); err != nil {
			if errors.Is(err, io.EOF) {
				slog.Warn("config file is empty, using defaults", "file", basePath+".yaml")
				return nil
			}
			return err
		}
		return nil
	}

	if f, err := os.Open(basePath + ".json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(target); err != nil {
			if errors.Is(err, io.EOF) {
				slog.Warn("config file is empty, using defaults", "file", basePath+".json")
				return nil
			}
			return err
		}
		return nil
	}

	return nil
}
