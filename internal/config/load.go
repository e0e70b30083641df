package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	holdtypeDir := filepath.Join(configDir, "holdtype")
	if err := os.MkdirAll(holdtypeDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(holdtypeDir, "config.toml"), nil
}

// GetDataDir returns ~/.local/share/holdtype (or $XDG_DATA_HOME/holdtype).
func GetDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "holdtype"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile decodes path over the defaults, so keys missing from the file
// keep their default values.
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: run holdtype configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	log.Printf("Config: loading configuration from %s", configPath)
	config := DefaultConfig()
	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	for _, key := range meta.Undecoded() {
		log.Printf("Config: ignoring unknown key %s", key)
	}

	config.applyThreadsDefault()

	log.Printf("Config: configuration loaded successfully")
	return config, nil
}

// LoadOrCreate loads the config file, writing the defaults first when it
// does not exist yet.
func LoadOrCreate() (*Config, error) {
	config, err := Load()
	if errors.Is(err, ErrConfigNotFound) {
		log.Printf("Config: no config file found, creating with defaults")
		if err := Save(DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return Load()
	}
	return config, err
}

// applyThreadsDefault sets default threads for local transcription if not explicitly set
func (c *Config) applyThreadsDefault() {
	if c.Recognition.Threads == 0 {
		threads := runtime.NumCPU() - 1
		if threads < 1 {
			threads = 1
		}
		c.Recognition.Threads = threads
	}
}

// Save writes the config to the default location.
func Save(c *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(c, configPath)
}

// SaveFile renders the commented config and replaces path atomically so
// the watcher never sees a half-written file.
func SaveFile(c *Config, path string) error {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, c); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	// the rendered file must decode back
	var check Config
	if _, err := toml.Decode(buf.String(), &check); err != nil {
		return fmt.Errorf("rendered config is invalid: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"q":    strconv.Quote,
	"dur":  func(d time.Duration) string { return strconv.Quote(d.String()) },
	"list": quoteList,
	"f":    formatFloat,
}).Parse(`# holdtype configuration
# Changes are applied without restarting the daemon where possible.

[general]
  user = {{q .General.User}}                # dictionary, snippets and history owner
  style = {{q .General.Style}}               # "formal", "casual" or "very_casual"

# Push-to-talk combination. Without key the modifiers alone form the chord.
[hotkey]
  ctrl = {{.Hotkey.Ctrl}}
  alt = {{.Hotkey.Alt}}
  shift = {{.Hotkey.Shift}}
  win = {{.Hotkey.Win}}
  key = {{q .Hotkey.Key}}                     # e.g. "space", "f9"; empty for modifiers only
  confirm_delay = {{dur .Hotkey.ConfirmDelay}}

[recording]
  sample_rate = {{.Recording.SampleRate}}
  channels = {{.Recording.Channels}}
  format = {{q .Recording.Format}}
  buffer_size = {{.Recording.BufferSize}}             # bytes per captured segment
  device = {{q .Recording.Device}}                   # PipeWire target, empty = default microphone
  channel_buffer_size = {{.Recording.ChannelBufferSize}}

[recognition]
  strategy = {{q .Recognition.Strategy}}           # "batch" (windowed) or "streaming"
  model = {{q .Recognition.Model}}
  model_path = {{q .Recognition.ModelPath}}               # overrides model
  language = {{q .Recognition.Language}}                 # empty = auto-detect
  threads = {{.Recognition.Threads}}
  flush_tick = {{dur .Recognition.FlushTick}}
  flush_interval = {{dur .Recognition.FlushInterval}}
  min_audio = {{dur .Recognition.MinAudio}}
  silence = {{dur .Recognition.Silence}}
  partial_every = {{dur .Recognition.PartialEvery}}
  max_utterance = {{dur .Recognition.MaxUtterance}}
  rms_threshold = {{f .Recognition.RMSThreshold}}

[correction]
  fuzzy_threshold = {{f .Correction.FuzzyThreshold}}
  short_word_threshold = {{f .Correction.ShortWordThreshold}}
  phonetic_threshold = {{f .Correction.PhoneticThreshold}}
  containment_ratio = {{f .Correction.ContainmentRatio}}

[injection]
  clipboard = {{q .Injection.Clipboard}}          # "wayland" (wl-clipboard) or "system"
  paste_backends = {{list .Injection.PasteBackends}}
  focus_settle = {{dur .Injection.FocusSettle}}
  restore_delay = {{dur .Injection.RestoreDelay}}
  command_timeout = {{dur .Injection.CommandTimeout}}

[session]
  trailing_poll = {{dur .Session.TrailingPoll}}
  trailing_timeout = {{dur .Session.TrailingTimeout}}
  stop_grace = {{dur .Session.StopGrace}}

[notifications]
  enabled = {{.Notifications.Enabled}}
  type = {{q .Notifications.Type}}             # "desktop", "log", "none"

[storage]
  path = {{q .Storage.Path}}                     # empty = data dir, "memory" = no persistence

[metrics]
  listen = {{q .Metrics.Listen}}                   # e.g. "127.0.0.1:9464", empty disables
`))

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// formatFloat always yields a TOML float, never an integer literal.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
