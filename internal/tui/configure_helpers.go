package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/language"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
)

func formatGeneralLabel(cfg *config.Config) string {
	return fmt.Sprintf("General (user %s, %s)", cfg.General.User, cfg.General.Style)
}

func formatHotkeyLabel(cfg *config.Config) string {
	combo, err := cfg.ToHotkeyConfiguration()
	if err != nil {
		return "Hotkey (invalid)"
	}
	return fmt.Sprintf("Hotkey (%s)", combo)
}

func formatRecognitionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Recognition (%s, %s, %s)", cfg.Recognition.Strategy, cfg.Recognition.Model,
		formatLanguage(cfg.Recognition.Language))
}

func formatInjectionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Injection (%s)", strings.Join(cfg.Injection.PasteBackends, " -> "))
}

func formatNotificationsLabel(cfg *config.Config) string {
	return fmt.Sprintf("Notifications (%s)", cfg.NotificationType())
}

func formatLanguage(code string) string {
	if code == "" {
		return "auto-detect"
	}
	if !language.IsValidCode(code) {
		return code
	}
	return language.FromCode(code).Name
}

func styleOptions() []huh.Option[string] {
	return []huh.Option[string]{
		huh.NewOption("Formal - sentences, capitals and punctuation", "formal"),
		huh.NewOption("Casual - light punctuation", "casual"),
		huh.NewOption("Very casual - lowercase, no punctuation", "very_casual"),
	}
}

func selectedModifiers(h config.HotkeyConfig) []string {
	var mods []string
	if h.Ctrl {
		mods = append(mods, "ctrl")
	}
	if h.Alt {
		mods = append(mods, "alt")
	}
	if h.Shift {
		mods = append(mods, "shift")
	}
	if h.Win {
		mods = append(mods, "win")
	}
	return mods
}

// applyHotkeyFields returns h with the modifier flags and key replaced.
func applyHotkeyFields(h config.HotkeyConfig, modifiers []string, key string) config.HotkeyConfig {
	h.Ctrl, h.Alt, h.Shift, h.Win = false, false, false, false
	for _, m := range modifiers {
		switch m {
		case "ctrl":
			h.Ctrl = true
		case "alt":
			h.Alt = true
		case "shift":
			h.Shift = true
		case "win":
			h.Win = true
		}
	}
	h.Key = strings.ToLower(strings.TrimSpace(key))
	return h
}

// modelOptions lists the known models, marking installed ones. A custom
// current model (set through model_path) is kept selectable.
func modelOptions(registry *whisper.Registry, current string) []huh.Option[string] {
	var options []huh.Option[string]
	found := false
	for _, m := range whisper.ListModels() {
		label := fmt.Sprintf("%s (%s)", m.Name, m.Size())
		if registry != nil && registry.IsInstalled(m.ID) {
			label += " - installed"
		}
		if m.ID == current {
			label += " (current)"
			found = true
		}
		options = append(options, huh.NewOption(label, m.ID))
	}
	if !found && current != "" {
		options = append(options, huh.NewOption(current+" (custom, current)", current))
	}
	return options
}

// languageOptions puts auto-detect first; English-only models get English
// as the single alternative.
func languageOptions(current string, multilingual bool) []huh.Option[string] {
	label := func(name, code string) string {
		if code == current {
			return name + " (current)"
		}
		return name
	}

	options := []huh.Option[string]{huh.NewOption(label("Auto-detect", ""), "")}
	if !multilingual {
		return append(options, huh.NewOption(label("English", "en"), "en"))
	}
	for _, lang := range language.List() {
		name := lang.Name
		if lang.NativeName != "" && lang.NativeName != lang.Name {
			name = fmt.Sprintf("%s (%s)", lang.Name, lang.NativeName)
		}
		options = append(options, huh.NewOption(label(name, lang.Code), lang.Code))
	}
	return options
}

func languageDescription(multilingual bool) string {
	if multilingual {
		return "Spoken language; / to filter"
	}
	return "This model only understands English"
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("use a duration like 200ms or 5s")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be a whole number >= 0")
	}
	return nil
}

// mustDuration parses input already accepted by validateDuration.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

func summaryLines(cfg *config.Config) []string {
	hk := "invalid"
	if combo, err := cfg.ToHotkeyConfiguration(); err == nil {
		hk = combo.String()
	}
	storage := cfg.Storage.Path
	if storage == "" {
		storage = "data directory"
	}
	metrics := cfg.Metrics.Listen
	if metrics == "" {
		metrics = "disabled"
	}
	return []string{
		row("User:", cfg.General.User),
		row("Style:", cfg.General.Style),
		row("Hotkey:", hk),
		row("Recognition:", fmt.Sprintf("%s with %s", cfg.Recognition.Strategy, cfg.Recognition.Model)),
		row("Language:", formatLanguage(cfg.Recognition.Language)),
		row("Backends:", strings.Join(cfg.Injection.PasteBackends, " -> ")),
		row("Notifications:", cfg.NotificationType()),
		row("Storage:", storage),
		row("Metrics:", metrics),
	}
}

func row(label, value string) string {
	return fmt.Sprintf("  %s %s", StyleLabel.Render(label), value)
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	for _, line := range summaryLines(cfg) {
		fmt.Println(line)
	}
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}

	return confirmed, nil
}
