package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
)

func editGeneral(cfg *config.Config) error {
	user := cfg.General.User
	style := cfg.General.Style

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User").
				Description("Owner of the dictionary, snippets and history").
				Value(&user).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("user cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Default Style").
				Description("Used until a style is chosen with holdtype style").
				Options(styleOptions()...).
				Value(&style),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.General.User = strings.TrimSpace(user)
	cfg.General.Style = style
	return nil
}

func editHotkey(cfg *config.Config) error {
	modifiers := selectedModifiers(cfg.Hotkey)
	key := cfg.Hotkey.Key
	confirmDelay := cfg.Hotkey.ConfirmDelay.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Modifiers").
				Description("Keys that must be held together").
				Options(
					huh.NewOption("Ctrl", "ctrl"),
					huh.NewOption("Alt", "alt"),
					huh.NewOption("Shift", "shift"),
					huh.NewOption("Win / Super", "win"),
				).
				Value(&modifiers),
			huh.NewInput().
				Title("Key").
				Description("Optional key such as space or f9; leave empty for a modifier-only chord").
				Value(&key).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := hotkey.ParseKey(s)
					return err
				}),
			huh.NewInput().
				Title("Confirm Delay").
				Description("Wait before re-checking modifiers after a match").
				Value(&confirmDelay).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	next := applyHotkeyFields(cfg.Hotkey, modifiers, key)
	next.ConfirmDelay = mustDuration(confirmDelay)
	probe := *cfg
	probe.Hotkey = next
	if _, err := probe.ToHotkeyConfiguration(); err != nil {
		return err
	}
	cfg.Hotkey = next
	return nil
}

func editRecognition(cfg *config.Config, registry *whisper.Registry) error {
	strategy := cfg.Recognition.Strategy
	model := cfg.Recognition.Model

	first := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Recognition Strategy").
				Options(
					huh.NewOption("Batch - transcribe 2s windows while you speak", "batch"),
					huh.NewOption("Streaming - incremental with live preview", "streaming"),
				).
				Value(&strategy),
			huh.NewSelect[string]().
				Title("Model").
				Description("Download missing models with holdtype model download <id>").
				Options(modelOptions(registry, model)...).
				Value(&model),
		),
	).WithTheme(getTheme())

	if err := first.Run(); err != nil {
		return err
	}

	lang := cfg.Recognition.Language
	threads := strconv.Itoa(cfg.Recognition.Threads)
	info := whisper.GetModel(model)
	multilingual := info == nil || info.Multilingual()
	if !multilingual && lang != "en" {
		lang = ""
	}

	second := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language").
				Description(languageDescription(multilingual)).
				Options(languageOptions(lang, multilingual)...).
				Filtering(true).
				Value(&lang),
			huh.NewInput().
				Title("Threads").
				Description("CPU threads for whisper; 0 picks one less than the CPU count").
				Value(&threads).
				Validate(validateNonNegativeInt),
		),
	).WithTheme(getTheme())

	if err := second.Run(); err != nil {
		return err
	}

	cfg.Recognition.Strategy = strategy
	cfg.Recognition.Model = model
	cfg.Recognition.Language = lang
	cfg.Recognition.Threads, _ = strconv.Atoi(threads)
	return nil
}

func editInjection(cfg *config.Config) error {
	clipboard := cfg.Injection.Clipboard
	backends := append([]string(nil), cfg.Injection.PasteBackends...)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Clipboard").
				Options(
					huh.NewOption("wl-clipboard (Wayland)", "wayland"),
					huh.NewOption("System (wl-clipboard, xclip or xsel)", "system"),
				).
				Value(&clipboard),
			huh.NewMultiSelect[string]().
				Title("Paste Backends").
				Description("Ctrl+V is synthesized with the first available backend").
				Options(
					huh.NewOption("ydotool - works everywhere (needs ydotoold)", "ydotool"),
					huh.NewOption("wtype - native Wayland", "wtype"),
				).
				Value(&backends).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("at least one backend required")
					}
					return nil
				}),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Injection.Clipboard = clipboard
	cfg.Injection.PasteBackends = backends
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	kind := cfg.Notifications.Type

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description("Listening, recognizing, no speech and error notices").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop (notify-send)", "desktop"),
					huh.NewOption("Log only", "log"),
					huh.NewOption("None", "none"),
				).
				Value(&kind),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = kind
	return nil
}

func editAdvanced(cfg *config.Config) error {
	device := cfg.Recording.Device
	trailingPoll := cfg.Session.TrailingPoll.String()
	trailingTimeout := cfg.Session.TrailingTimeout.String()
	stopGrace := cfg.Session.StopGrace.String()
	restoreDelay := cfg.Injection.RestoreDelay.String()
	storagePath := cfg.Storage.Path
	metricsListen := cfg.Metrics.Listen

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recording Device").
				Description("PipeWire target; empty uses the default microphone").
				Value(&device),
			huh.NewInput().
				Title("Trailing Poll").
				Description("How often to check for the last result after release").
				Value(&trailingPoll).
				Validate(validateDuration),
			huh.NewInput().
				Title("Trailing Timeout").
				Description("Give up waiting for the last result after this long").
				Value(&trailingTimeout).
				Validate(validateDuration),
			huh.NewInput().
				Title("Stop Grace").
				Value(&stopGrace).
				Validate(validateDuration),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Clipboard Restore Delay").
				Value(&restoreDelay).
				Validate(validateDuration),
			huh.NewInput().
				Title("Storage Path").
				Description(`Empty for the data directory, "memory" to keep nothing`).
				Value(&storagePath),
			huh.NewInput().
				Title("Metrics Listen Address").
				Description("e.g. 127.0.0.1:9464; empty disables /metrics").
				Value(&metricsListen),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recording.Device = strings.TrimSpace(device)
	cfg.Session.TrailingPoll = mustDuration(trailingPoll)
	cfg.Session.TrailingTimeout = mustDuration(trailingTimeout)
	cfg.Session.StopGrace = mustDuration(stopGrace)
	cfg.Injection.RestoreDelay = mustDuration(restoreDelay)
	cfg.Storage.Path = strings.TrimSpace(storagePath)
	cfg.Metrics.Listen = strings.TrimSpace(metricsListen)
	return nil
}
