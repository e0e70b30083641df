package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, c *Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveFile(c, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.Recording.SampleRate = 8000
	path := writeConfig(t, c)

	if _, err := NewManager(path); err == nil || !strings.Contains(err.Error(), "sample_rate") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestManagerGetConfigReturnsCopy(t *testing.T) {
	m, err := NewManager(writeConfig(t, DefaultConfig()))
	if err != nil {
		t.Fatal(err)
	}

	c := m.GetConfig()
	c.General.User = "mallory"
	c.Injection.PasteBackends[0] = "wtype"

	again := m.GetConfig()
	if again.General.User != "default" || again.Injection.PasteBackends[0] != "ydotool" {
		t.Errorf("manager state was mutated through a copy: %+v", again)
	}
}

func TestManagerUpdate(t *testing.T) {
	m, err := NewManager(writeConfig(t, DefaultConfig()))
	if err != nil {
		t.Fatal(err)
	}

	var calls int
	var old, next *Config
	m.Subscribe(func(o, n *Config) {
		calls++
		old, next = o, n
	})

	if err := m.Update(func(c *Config) { c.General.Style = "casual" }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if calls != 1 || old.General.Style != "formal" || next.General.Style != "casual" {
		t.Errorf("calls=%d old=%v next=%v", calls, old.General, next.General)
	}

	onDisk, err := LoadFile(m.Path())
	if err != nil {
		t.Fatal(err)
	}
	if onDisk.General.Style != "casual" {
		t.Errorf("update not persisted: %s", onDisk.General.Style)
	}

	if err := m.Update(func(c *Config) { c.General.Style = "loud" }); err == nil {
		t.Error("invalid update should fail")
	}
	if m.GetConfig().General.Style != "casual" {
		t.Error("failed update must not change the config")
	}

	// same content again is not a change
	if err := m.Update(func(c *Config) {}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("no-op update notified subscribers: %d calls", calls)
	}
}

func TestManagerReloadsOnFileChange(t *testing.T) {
	path := writeConfig(t, DefaultConfig())
	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 4)
	m.Subscribe(func(_, n *Config) { changed <- n })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartWatching(ctx); err != nil {
		t.Fatalf("StartWatching: %v", err)
	}
	defer m.Stop()

	next := m.GetConfig()
	next.Session.TrailingTimeout = 7 * time.Second
	if err := SaveFile(next, path); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Session.TrailingTimeout != 7*time.Second {
			t.Errorf("reloaded trailing_timeout = %v", c.Session.TrailingTimeout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}
}

func TestManagerKeepsConfigOnInvalidReload(t *testing.T) {
	path := writeConfig(t, DefaultConfig())
	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	m.Subscribe(func(_, _ *Config) { t.Error("invalid reload must not notify") })

	if err := os.WriteFile(path, []byte("[general]\nstyle = \"loud\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m.reloadConfig()

	if got := m.GetConfig().General.Style; got != "formal" {
		t.Errorf("style = %s, want previous formal", got)
	}
}
