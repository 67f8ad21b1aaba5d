// Package prefs stores durable user settings (API keys, model choice) in a
// viper-managed config file and streams changes to the session.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/dvoron/pdfscribe/internal/session"
)

const (
	keyActiveAPIKey = "active_api_key"
	keyKnownAPIKeys = "known_api_keys"
	keyModelID      = "model_id"
)

// Manager is the durable preference store backing the session controller.
type Manager struct {
	v    *viper.Viper
	path string

	mu   sync.Mutex
	subs map[int]chan session.Settings
	next int
}

// Open loads (or initializes) the settings file under configDir.
func Open(configDir string) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetDefault(keyModelID, session.DefaultModelID)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
	}
	return &Manager{
		v:    v,
		path: filepath.Join(configDir, "settings.yaml"),
		subs: map[int]chan session.Settings{},
	}, nil
}

// Settings returns the current preference bundle.
func (m *Manager) Settings() session.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settingsLocked()
}

func (m *Manager) settingsLocked() session.Settings {
	return session.Settings{
		ActiveAPIKey: m.v.GetString(keyActiveAPIKey),
		KnownAPIKeys: m.v.GetStringSlice(keyKnownAPIKeys),
		ModelID:      m.v.GetString(keyModelID),
	}
}

// Watch streams the settings once at subscribe time and after every mutation
// until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) <-chan session.Settings {
	ch := make(chan session.Settings, 16)
	m.mu.Lock()
	ch <- m.settingsLocked()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(ch)
	}()
	return ch
}

// SetActiveAPIKey activates a key without touching the known set.
func (m *Manager) SetActiveAPIKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v.Set(keyActiveAPIKey, key)
	return m.persistLocked()
}

// AddAPIKey records key in the known set (deduplicated) and activates it.
func (m *Manager) AddAPIKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	known := m.v.GetStringSlice(keyKnownAPIKeys)
	found := false
	for _, k := range known {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		known = append(known, key)
	}
	m.v.Set(keyKnownAPIKeys, known)
	m.v.Set(keyActiveAPIKey, key)
	return m.persistLocked()
}

// SetModelID stores the generation model identifier.
func (m *Manager) SetModelID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v.Set(keyModelID, id)
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	if err := m.v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	current := m.settingsLocked()
	for _, ch := range m.subs {
		select {
		case ch <- current:
		default:
		}
	}
	return nil
}
