package config

import (
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
)

// Manager holds the current configuration and reloads it when a file in the
// config directory changes. Only callbacks decide what a reload affects.
type Manager struct {
	mu           sync.RWMutex
	current      *AppConfig
	configDir    string
	watchFiles   []string
	onUpdateFunc func(*AppConfig)
	watcher      *fsnotify.Watcher
	done         chan struct{}
	closeOnce    sync.Once
}

func NewManager(configDir string) (*Manager, error) {
	mgr := &Manager{
		configDir: configDir,
		watchFiles: []string{
			"server.yaml", "server.json",
			"processing.yaml", "processing.json",
			"webrtc.yaml", "webrtc.json",
			"log.yaml", "log.json",
		},
		done: make(chan struct{}),
	}

	if err := mgr.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create config watcher", "error", err)
		return mgr, nil
	}
	if err := watcher.Add(configDir); err != nil {
		slog.Error("failed to watch config dir", "dir", configDir, "error", err)
		_ = watcher.Close()
		return mgr, nil
	}
	mgr.watcher = watcher
	go mgr.watch()

	return mgr, nil
}

func (m *Manager) Get() AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.current
}

// Reload reads the directory again. On error the previous configuration stays.
func (m *Manager) Reload() error {
	newConfig, err := LoadAppConfig(m.configDir)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = newConfig
	callback := m.onUpdateFunc
	m.mu.Unlock()

	if callback != nil {
		callback(newConfig)
	}

	metrics.ConfigReloads.Inc()
	slog.Info("configuration loaded", "dir", m.configDir)
	return nil
}

func (m *Manager) SetUpdateCallback(f func(*AppConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdateFunc = f
}

func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		if m.watcher != nil {
			err = m.watcher.Close()
		}
	})
	return err
}

func (m *Manager) watch() {
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !slices.Contains(m.watchFiles, filepath.Base(event.Name)) {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				slog.Info("config file modified", "file", event.Name)
				if err := m.Reload(); err != nil {
					slog.Error("error reloading config", "error", err)
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}
