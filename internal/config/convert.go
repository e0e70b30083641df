package config

import (
	"fmt"
	"path/filepath"

	"github.com/leonardotrapani/holdtype/internal/correction"
	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/injection"
	"github.com/leonardotrapani/holdtype/internal/pipeline"
	"github.com/leonardotrapani/holdtype/internal/recording"
	"github.com/leonardotrapani/holdtype/internal/style"
	"github.com/leonardotrapani/holdtype/internal/transcriber"
)

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	return transcriber.Config{
		Strategy:      c.Recognition.Strategy,
		SampleRate:    c.Recording.SampleRate,
		FlushTick:     c.Recognition.FlushTick,
		FlushInterval: c.Recognition.FlushInterval,
		MinAudio:      c.Recognition.MinAudio,
		Silence:       c.Recognition.Silence,
		PartialEvery:  c.Recognition.PartialEvery,
		MaxUtterance:  c.Recognition.MaxUtterance,
		RMSThreshold:  c.Recognition.RMSThreshold,
	}
}

// ToHotkeyConfiguration builds the combination from the [hotkey] flags.
func (c *Config) ToHotkeyConfiguration() (hotkey.Configuration, error) {
	h := hotkey.Configuration{
		Ctrl:  c.Hotkey.Ctrl,
		Alt:   c.Hotkey.Alt,
		Shift: c.Hotkey.Shift,
		Win:   c.Hotkey.Win,
	}
	if c.Hotkey.Key != "" {
		k, err := hotkey.ParseKey(c.Hotkey.Key)
		if err != nil {
			return hotkey.Configuration{}, err
		}
		h.Key = k
		h.HasKey = true
	}
	if err := h.Validate(); err != nil {
		return hotkey.Configuration{}, err
	}
	return h, nil
}

// SetHotkey stores h in the [hotkey] section.
func (c *Config) SetHotkey(h hotkey.Configuration) {
	c.Hotkey.Ctrl = h.Ctrl
	c.Hotkey.Alt = h.Alt
	c.Hotkey.Shift = h.Shift
	c.Hotkey.Win = h.Win
	c.Hotkey.Key = ""
	if h.HasKey {
		c.Hotkey.Key = h.Key.String()
	}
}

func (c *Config) ToThresholds() correction.Thresholds {
	return correction.Thresholds{
		Fuzzy:       c.Correction.FuzzyThreshold,
		ShortWord:   c.Correction.ShortWordThreshold,
		Phonetic:    c.Correction.PhoneticThreshold,
		Containment: c.Correction.ContainmentRatio,
	}
}

func (c *Config) ToInjectionConfig() injection.Config {
	return injection.Config{
		Clipboard:      c.Injection.Clipboard,
		PasteBackends:  append([]string(nil), c.Injection.PasteBackends...),
		FocusSettle:    c.Injection.FocusSettle,
		RestoreDelay:   c.Injection.RestoreDelay,
		CommandTimeout: c.Injection.CommandTimeout,
	}
}

func (c *Config) ToSessionConfig() pipeline.Config {
	return pipeline.Config{
		User:            c.General.User,
		DefaultStyle:    style.ParseStyle(c.General.Style),
		TrailingPoll:    c.Session.TrailingPoll,
		TrailingTimeout: c.Session.TrailingTimeout,
		StopGrace:       c.Session.StopGrace,
	}
}

// NotificationType is "none" when notifications are disabled.
func (c *Config) NotificationType() string {
	if !c.Notifications.Enabled {
		return "none"
	}
	return c.Notifications.Type
}

// StorageDir resolves [storage] path; "" is returned for the in-memory store.
func (c *Config) StorageDir() (string, error) {
	switch c.Storage.Path {
	case "memory":
		return "", nil
	case "":
		dir, err := GetDataDir()
		if err != nil {
			return "", fmt.Errorf("failed to get data directory: %w", err)
		}
		return filepath.Join(dir, "db"), nil
	default:
		return c.Storage.Path, nil
	}
}
