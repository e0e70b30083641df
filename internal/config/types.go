package config

import "time"

type Config struct {
	General       GeneralConfig       `toml:"general"`
	Hotkey        HotkeyConfig        `toml:"hotkey"`
	Recording     RecordingConfig     `toml:"recording"`
	Recognition   RecognitionConfig   `toml:"recognition"`
	Correction    CorrectionConfig    `toml:"correction"`
	Injection     InjectionConfig     `toml:"injection"`
	Session       SessionConfig       `toml:"session"`
	Notifications NotificationsConfig `toml:"notifications"`
	Storage       StorageConfig       `toml:"storage"`
	Metrics       MetricsConfig       `toml:"metrics"`
}

// GeneralConfig holds global settings that apply across the application
type GeneralConfig struct {
	User  string `toml:"user"`  // identity dictionary, snippets and history are keyed by
	Style string `toml:"style"` // fallback when the user has no stored preference
}

// HotkeyConfig is the push-to-talk combination. Key is optional; without it
// the modifiers alone form the chord.
type HotkeyConfig struct {
	Ctrl         bool          `toml:"ctrl"`
	Alt          bool          `toml:"alt"`
	Shift        bool          `toml:"shift"`
	Win          bool          `toml:"win"`
	Key          string        `toml:"key"`
	ConfirmDelay time.Duration `toml:"confirm_delay"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	BufferSize        int    `toml:"buffer_size"`
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

type RecognitionConfig struct {
	Strategy  string `toml:"strategy"` // "batch" or "streaming"
	Model     string `toml:"model"`
	ModelPath string `toml:"model_path"` // overrides model
	Language  string `toml:"language"`
	Threads   int    `toml:"threads"` // 0 = auto: NumCPU-1

	FlushTick     time.Duration `toml:"flush_tick"`
	FlushInterval time.Duration `toml:"flush_interval"`
	MinAudio      time.Duration `toml:"min_audio"`

	Silence      time.Duration `toml:"silence"`
	PartialEvery time.Duration `toml:"partial_every"`
	MaxUtterance time.Duration `toml:"max_utterance"`
	RMSThreshold float64       `toml:"rms_threshold"`
}

type CorrectionConfig struct {
	FuzzyThreshold     float64 `toml:"fuzzy_threshold"`
	ShortWordThreshold float64 `toml:"short_word_threshold"`
	PhoneticThreshold  float64 `toml:"phonetic_threshold"`
	ContainmentRatio   float64 `toml:"containment_ratio"`
}

type InjectionConfig struct {
	Clipboard      string        `toml:"clipboard"` // "wayland" or "system"
	PasteBackends  []string      `toml:"paste_backends"`
	FocusSettle    time.Duration `toml:"focus_settle"`
	RestoreDelay   time.Duration `toml:"restore_delay"`
	CommandTimeout time.Duration `toml:"command_timeout"`
}

type SessionConfig struct {
	TrailingPoll    time.Duration `toml:"trailing_poll"`
	TrailingTimeout time.Duration `toml:"trailing_timeout"`
	StopGrace       time.Duration `toml:"stop_grace"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}

type StorageConfig struct {
	Path string `toml:"path"` // empty = data dir; "memory" keeps nothing on disk
}

type MetricsConfig struct {
	Listen string `toml:"listen"` // host:port for /metrics, empty disables
}
