package config

import (
	"fmt"
	"net"
	"time"

	"github.com/leonardotrapani/holdtype/internal/language"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
	"github.com/leonardotrapani/holdtype/internal/style"
)

func (c *Config) Validate() error {
	if c.General.User == "" {
		return fmt.Errorf("invalid general.user: empty")
	}
	if !style.Style(c.General.Style).Valid() {
		return fmt.Errorf("invalid general.style: %s (must be formal, casual, or very_casual)", c.General.Style)
	}

	if _, err := c.ToHotkeyConfiguration(); err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}
	if c.Hotkey.ConfirmDelay < 0 {
		return fmt.Errorf("invalid hotkey.confirm_delay: %v", c.Hotkey.ConfirmDelay)
	}

	if c.Recording.SampleRate != 16000 {
		return fmt.Errorf("invalid recording.sample_rate: %d (recognition requires 16000)", c.Recording.SampleRate)
	}
	if c.Recording.Channels != 1 {
		return fmt.Errorf("invalid recording.channels: %d (recognition requires mono)", c.Recording.Channels)
	}
	if c.Recording.Format != "s16" && c.Recording.Format != "s16le" {
		return fmt.Errorf("invalid recording.format: %s (must be s16)", c.Recording.Format)
	}
	if c.Recording.BufferSize <= 0 || c.Recording.BufferSize%2 != 0 {
		return fmt.Errorf("invalid recording.buffer_size: %d (must be positive and even)", c.Recording.BufferSize)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}

	if err := c.validateRecognition(); err != nil {
		return err
	}

	thresholds := map[string]float64{
		"fuzzy_threshold":      c.Correction.FuzzyThreshold,
		"short_word_threshold": c.Correction.ShortWordThreshold,
		"phonetic_threshold":   c.Correction.PhoneticThreshold,
		"containment_ratio":    c.Correction.ContainmentRatio,
	}
	for name, v := range thresholds {
		if v <= 0 || v > 1 {
			return fmt.Errorf("invalid correction.%s: %v (must be in (0, 1])", name, v)
		}
	}

	if c.Injection.Clipboard != "wayland" && c.Injection.Clipboard != "system" {
		return fmt.Errorf("invalid injection.clipboard: %s (must be wayland or system)", c.Injection.Clipboard)
	}
	if len(c.Injection.PasteBackends) == 0 {
		return fmt.Errorf("invalid injection.paste_backends: empty (must have at least one backend)")
	}
	validBackends := map[string]bool{"ydotool": true, "wtype": true}
	for _, backend := range c.Injection.PasteBackends {
		if !validBackends[backend] {
			return fmt.Errorf("invalid injection.paste_backends: unknown backend %q (must be ydotool or wtype)", backend)
		}
	}
	if c.Injection.FocusSettle < 0 {
		return fmt.Errorf("invalid injection.focus_settle: %v", c.Injection.FocusSettle)
	}
	if c.Injection.RestoreDelay < 0 {
		return fmt.Errorf("invalid injection.restore_delay: %v", c.Injection.RestoreDelay)
	}
	if c.Injection.CommandTimeout <= 0 {
		return fmt.Errorf("invalid injection.command_timeout: %v", c.Injection.CommandTimeout)
	}

	if c.Session.TrailingPoll <= 0 {
		return fmt.Errorf("invalid session.trailing_poll: %v", c.Session.TrailingPoll)
	}
	if c.Session.TrailingTimeout < c.Session.TrailingPoll {
		return fmt.Errorf("invalid session.trailing_timeout: %v (must be at least trailing_poll)", c.Session.TrailingTimeout)
	}
	if c.Session.StopGrace <= 0 {
		return fmt.Errorf("invalid session.stop_grace: %v", c.Session.StopGrace)
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
	}

	return nil
}

func (c *Config) validateRecognition() error {
	r := c.Recognition
	switch r.Strategy {
	case "batch", "streaming":
	default:
		return fmt.Errorf("invalid recognition.strategy: %s (must be batch or streaming)", r.Strategy)
	}

	if r.ModelPath == "" {
		model := whisper.GetModel(r.Model)
		if model == nil {
			return fmt.Errorf("invalid recognition.model: %q (run holdtype model list, or set model_path)", r.Model)
		}
		if !model.Multilingual() && r.Language != "" && r.Language != "en" {
			return fmt.Errorf("invalid recognition.language: %s (model %s is English only)", r.Language, r.Model)
		}
	}
	if !language.IsValidCode(r.Language) {
		return fmt.Errorf("invalid recognition.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", r.Language)
	}
	if r.Threads < 0 {
		return fmt.Errorf("invalid recognition.threads: %d", r.Threads)
	}

	durations := []struct {
		name string
		v    time.Duration
	}{
		{"flush_tick", r.FlushTick},
		{"flush_interval", r.FlushInterval},
		{"min_audio", r.MinAudio},
		{"silence", r.Silence},
		{"partial_every", r.PartialEvery},
		{"max_utterance", r.MaxUtterance},
	}
	for _, d := range durations {
		if d.v <= 0 {
			return fmt.Errorf("invalid recognition.%s: %v", d.name, d.v)
		}
	}
	if r.FlushInterval < r.FlushTick {
		return fmt.Errorf("invalid recognition.flush_interval: %v (must be at least flush_tick)", r.FlushInterval)
	}
	if r.RMSThreshold <= 0 || r.RMSThreshold >= 1 {
		return fmt.Errorf("invalid recognition.rms_threshold: %v (must be in (0, 1))", r.RMSThreshold)
	}
	return nil
}
