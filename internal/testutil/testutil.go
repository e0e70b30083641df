// Package testutil holds fakes and helpers shared by the daemon-level tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/transcriber"
)

// TestConfig returns a valid configuration that keeps nothing on disk and
// shows no notifications.
func TestConfig() *config.Config {
	c := config.DefaultConfig()
	c.Storage.Path = "memory"
	c.Notifications.Enabled = false
	c.Notifications.Type = "none"
	c.Recognition.Threads = 1
	return c
}

// WriteConfigFile saves TestConfig, after modify, into a temp dir and
// returns its path.
func WriteConfigFile(t *testing.T, modify func(*config.Config)) string {
	t.Helper()

	c := TestConfig()
	if modify != nil {
		modify(c)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.SaveFile(c, path); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// CreateTempConfigFile writes raw TOML for tests that need malformed input.
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, what string, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out after %v waiting for %s", timeout, what)
}

// UnavailableMonitor behaves like a session without global input access.
type UnavailableMonitor struct{}

func (UnavailableMonitor) Start() (<-chan hotkey.KeyEvent, error) {
	return nil, hotkey.ErrMonitorUnavailable
}
func (UnavailableMonitor) IsDown(hotkey.Key) bool { return false }
func (UnavailableMonitor) Stop()                  {}

// MockListener implements transcriber.Listener. Every session ends with Text
// as the final result; an empty Text is reported as no speech.
type MockListener struct {
	Text     string
	Loaded   bool
	StartErr error

	mu       sync.Mutex
	ch       chan transcriber.Result
	sessions int
}

func NewMockListener(text string) *MockListener {
	return &MockListener{Text: text, Loaded: true}
}

func (l *MockListener) StartListening(context.Context) (<-chan transcriber.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.StartErr != nil {
		return nil, l.StartErr
	}
	l.sessions++
	l.ch = make(chan transcriber.Result, 4)
	return l.ch, nil
}

func (l *MockListener) StopListening(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ch == nil {
		return nil
	}
	l.ch <- transcriber.Result{Text: l.Text, IsFinal: true, NoSpeech: l.Text == ""}
	close(l.ch)
	l.ch = nil
	return nil
}

func (l *MockListener) IsModelLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Loaded
}

// Sessions reports how many times listening started.
func (l *MockListener) Sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions
}

// MockInjector implements injection.Injector and records what it was given.
type MockInjector struct {
	InjectError error

	mu            sync.Mutex
	captures      int
	injectedTexts []string
}

func NewMockInjector() *MockInjector {
	return &MockInjector{}
}

func (m *MockInjector) CaptureTarget(context.Context) {
	m.mu.Lock()
	m.captures++
	m.mu.Unlock()
}

func (m *MockInjector) Inject(_ context.Context, text string) error {
	if m.InjectError != nil {
		return m.InjectError
	}
	m.mu.Lock()
	m.injectedTexts = append(m.injectedTexts, text)
	m.mu.Unlock()
	return nil
}

func (m *MockInjector) GetInjectedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.injectedTexts))
	copy(result, m.injectedTexts)
	return result
}

func (m *MockInjector) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}
