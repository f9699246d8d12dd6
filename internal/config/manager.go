package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Manager holds the live settings snapshot. Readers get a consistent copy;
// updates (admin API, file reload) swap the whole snapshot atomically.
type Manager struct {
	cur    atomic.Pointer[Settings]
	logger *zap.Logger
}

// NewManager creates a manager seeded with the given settings.
func NewManager(s Settings, logger *zap.Logger) *Manager {
	m := &Manager{logger: logger}
	norm := s.Normalize()
	m.cur.Store(&norm)
	return m
}

// Current returns the live settings snapshot.
func (m *Manager) Current() Settings {
	return *m.cur.Load()
}

// Apply normalizes and installs new settings.
func (m *Manager) Apply(s Settings) Settings {
	norm := s.Normalize()
	m.cur.Store(&norm)
	m.logger.Info("settings applied",
		zap.Bool("read_only_mode", norm.Access.ReadOnlyMode),
		zap.Bool("config_only_mode", norm.Access.ConfigOnlyMode),
		zap.Bool("rate_limiting_enabled", norm.RateLimiting.Enabled),
	)
	return norm
}

// WatchFile reloads the settings file whenever it changes, until ctx is
// cancelled. Editors often replace files instead of writing in place, so the
// watch is on the parent directory and filtered by name.
func (m *Manager) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("WatchFile: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("WatchFile: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				s, err := LoadFile(path)
				if err != nil {
					m.logger.Warn("settings reload failed, keeping previous snapshot",
						zap.String("path", path),
						zap.Error(err),
					)
					continue
				}
				m.Apply(s)
				m.logger.Info("settings reloaded from file", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("settings watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
