package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leonardotrapani/holdtype/internal/bus"
)

// StatusFunc fetches one daemon status snapshot.
type StatusFunc func(ctx context.Context) (bus.Status, error)

type statusMsg struct {
	status bus.Status
	err    error
}

type tickMsg time.Time

// watchModel polls the daemon and renders its state until the user quits.
type watchModel struct {
	fetch    StatusFunc
	interval time.Duration
	spinner  spinner.Model
	status   bus.Status
	err      error
	loaded   bool
	width    int
}

func newWatchModel(fetch StatusFunc, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return watchModel{fetch: fetch, interval: interval, spinner: s}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.spinner.Tick)
}

func (m watchModel) poll() tea.Cmd {
	fetch, timeout := m.fetch, m.interval*4
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := fetch(ctx)
		return statusMsg{status: st, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case statusMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		return m, m.tick()
	case tickMsg:
		return m, m.poll()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render("holdtype"))
	b.WriteString("\n\n")

	switch {
	case !m.loaded:
		b.WriteString(m.spinner.View() + " connecting to daemon...\n")
	case m.err != nil:
		b.WriteString(StyleError.Render("✗ "+m.err.Error()) + "\n")
	default:
		b.WriteString(m.stateLine() + "\n\n")
		b.WriteString(row("User:", m.status.User) + "\n")
		b.WriteString(row("Hotkey:", m.hotkeyLine()) + "\n")
		b.WriteString(row("Model:", m.modelLine()) + "\n")
		if m.status.Preview != "" {
			box := StyleBox
			if m.width > 8 {
				box = box.Width(m.width - 4)
			}
			b.WriteString("\n" + box.Render(m.status.Preview) + "\n")
		}
		if m.status.Notice != "" {
			b.WriteString("\n" + StyleWarning.Render(m.status.Notice) + "\n")
		}
	}

	b.WriteString("\n" + StyleSubtle.Render("q quit"))
	return b.String()
}

func (m watchModel) stateLine() string {
	badge := stateBadge(m.status.State)
	if m.status.State == "recognizing" {
		return m.spinner.View() + " " + badge
	}
	return badge
}

func (m watchModel) hotkeyLine() string {
	if !m.status.HotkeyAvailable {
		return m.status.Hotkey + " " + StyleWarning.Render("(unavailable, bind holdtype press/release)")
	}
	return m.status.Hotkey
}

func (m watchModel) modelLine() string {
	if m.status.ModelLoaded {
		return StyleSuccess.Render("loaded")
	}
	return StyleWarning.Render("loading")
}

func stateBadge(state string) string {
	color := ColorMuted
	switch state {
	case "listening":
		color = ColorError
	case "recognizing":
		color = ColorSecondary
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorText).
		Background(color).
		Padding(0, 1).
		Render(strings.ToUpper(state))
}

// Watch shows the live daemon state until q is pressed.
func Watch(fetch StatusFunc, interval time.Duration) error {
	p := tea.NewProgram(newWatchModel(fetch, interval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
