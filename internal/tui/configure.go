package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
	"github.com/muesli/termenv"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionGeneral       ConfigSection = "general"
	SectionHotkey        ConfigSection = "hotkey"
	SectionRecognition   ConfigSection = "recognition"
	SectionInjection     ConfigSection = "injection"
	SectionNotifications ConfigSection = "notifications"
	SectionAdvanced      ConfigSection = "advanced"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run edits a copy of existingConfig (defaults when nil) until the user
// saves or discards. The caller persists the result.
func Run(existingConfig *config.Config, registry *whisper.Registry) (*ConfigureResult, error) {
	cfg := config.DefaultConfig()
	if existingConfig != nil {
		c := *existingConfig
		c.Injection.PasteBackends = append([]string(nil), existingConfig.Injection.PasteBackends...)
		cfg = &c
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		var editErr error
		switch section {
		case SectionSaveExit:
			if err := cfg.Validate(); err != nil {
				fmt.Println(StyleError.Render("Invalid configuration: " + err.Error()))
				pause()
				continue
			}
			confirmed, err := showSummary(cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: cfg}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionGeneral:
			editErr = editGeneral(cfg)
		case SectionHotkey:
			editErr = editHotkey(cfg)
		case SectionRecognition:
			editErr = editRecognition(cfg, registry)
		case SectionInjection:
			editErr = editInjection(cfg)
		case SectionNotifications:
			editErr = editNotifications(cfg)
		case SectionAdvanced:
			editErr = editAdvanced(cfg)
		}
		if editErr != nil && editErr != huh.ErrUserAborted {
			fmt.Println(StyleError.Render(editErr.Error()))
			pause()
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatGeneralLabel(cfg), SectionGeneral),
		huh.NewOption(formatHotkeyLabel(cfg), SectionHotkey),
		huh.NewOption(formatRecognitionLabel(cfg), SectionRecognition),
		huh.NewOption(formatInjectionLabel(cfg), SectionInjection),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption("Advanced Settings", SectionAdvanced),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

func pause() {
	var ok bool
	_ = huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Continue").Affirmative("OK").Negative("").Value(&ok),
	)).WithTheme(getTheme()).Run()
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
