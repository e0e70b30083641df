package config

import "time"

// DefaultConfig returns the configuration written on first start.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			User:  "default",
			Style: "formal",
		},
		Hotkey: HotkeyConfig{
			Ctrl:         true,
			Win:          true,
			ConfirmDelay: 10 * time.Millisecond,
		},
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16",
			BufferSize:        3200,
			Device:            "",
			ChannelBufferSize: 64,
		},
		Recognition: RecognitionConfig{
			Strategy:      "batch",
			Model:         "base.en",
			Language:      "",
			Threads:       0,
			FlushTick:     500 * time.Millisecond,
			FlushInterval: 2 * time.Second,
			MinAudio:      time.Second,
			Silence:       600 * time.Millisecond,
			PartialEvery:  time.Second,
			MaxUtterance:  15 * time.Second,
			RMSThreshold:  0.01,
		},
		Correction: CorrectionConfig{
			FuzzyThreshold:     0.60,
			ShortWordThreshold: 0.50,
			PhoneticThreshold:  0.40,
			ContainmentRatio:   0.70,
		},
		Injection: InjectionConfig{
			Clipboard:      "wayland",
			PasteBackends:  []string{"ydotool", "wtype"},
			FocusSettle:    50 * time.Millisecond,
			RestoreDelay:   300 * time.Millisecond,
			CommandTimeout: 3 * time.Second,
		},
		Session: SessionConfig{
			TrailingPoll:    200 * time.Millisecond,
			TrailingTimeout: 5 * time.Second,
			StopGrace:       2 * time.Second,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Storage: StorageConfig{Path: ""},
		Metrics: MetricsConfig{Listen: ""},
	}
}
