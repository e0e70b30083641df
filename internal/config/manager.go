package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is called after a successful reload with the previous and the
// new configuration.
type ChangeFunc func(old, new *Config)

type Manager struct {
	path string

	mu          sync.RWMutex
	config      *Config
	subscribers []ChangeFunc

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewManager loads path, or the default location (creating it with
// defaults) when path is empty.
func NewManager(path string) (*Manager, error) {
	log.Printf("Config manager: initializing configuration system...")

	var (
		config *Config
		err    error
	)
	if path == "" {
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
		config, err = LoadOrCreate()
	} else {
		config, err = LoadFile(path)
	}
	if err != nil {
		log.Printf("Config manager: failed to load initial configuration: %v", err)
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	log.Printf("Config manager: initialization completed successfully")
	return &Manager{path: path, config: config}, nil
}

func (m *Manager) Path() string {
	return m.path
}

// GetConfig returns a copy that callers may modify freely.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.clone()
}

func (m *Manager) Subscribe(fn ChangeFunc) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
}

// Update applies fn to a copy, validates and saves it, then notifies
// subscribers.
func (m *Manager) Update(fn func(*Config)) error {
	next := m.GetConfig()
	fn(next)
	if err := next.Validate(); err != nil {
		return err
	}
	if err := SaveFile(next, m.path); err != nil {
		return err
	}
	m.apply(next)
	return nil
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	m.watcher = watcher

	// editors and SaveFile replace the file, so watch the directory
	configDir := filepath.Dir(m.path)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return err
	}

	m.wg.Add(1)
	go m.watchLoop(ctx)

	log.Printf("Config manager: watching %s for changes", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFileName {
				continue
			}

			// Write covers in-place edits, Create and Rename cover atomic replaces.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Printf("Config manager: file change detected: %s. Reloading config...", event.Name)
				m.reloadConfig()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reloadConfig() {
	newConfig, err := LoadFile(m.path)
	if err != nil {
		log.Printf("Config manager: failed to reload config: %v", err)
		return
	}

	if err := newConfig.Validate(); err != nil {
		log.Printf("Config manager: invalid config after reload, keeping previous: %v", err)
		return
	}

	m.apply(newConfig)
}

func (m *Manager) apply(next *Config) {
	m.mu.Lock()
	old := m.config
	if reflect.DeepEqual(old, next) {
		m.mu.Unlock()
		return
	}
	m.config = next
	subscribers := append([]ChangeFunc(nil), m.subscribers...)
	m.mu.Unlock()

	log.Printf("Config manager: configuration successfully reloaded")
	for _, fn := range subscribers {
		fn(old.clone(), next.clone())
	}
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Injection.PasteBackends = append([]string(nil), c.Injection.PasteBackends...)
	return &cp
}
