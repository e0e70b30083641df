package injection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Window identifies a toplevel window that can receive focus again later.
type Window struct {
	Address string `json:"address"`
	Class   string `json:"class"`
	Title   string `json:"title"`
}

// ForegroundWindowController captures and restores input focus.
type ForegroundWindowController interface {
	Foreground(ctx context.Context) (Window, error)
	Focus(ctx context.Context, w Window) error
}

var ErrNoWindow = errors.New("injection: no foreground window")

// NewForegroundController picks hyprctl under Hyprland and a no-op elsewhere.
func NewForegroundController(timeout time.Duration) ForegroundWindowController {
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return &HyprlandWindows{Timeout: timeout}
	}
	return NopWindows{}
}

// HyprlandWindows talks to the compositor through hyprctl.
type HyprlandWindows struct {
	Timeout time.Duration
	// output runs hyprctl and returns stdout; nil means exec.
	output func(ctx context.Context, args ...string) ([]byte, error)
}

func (h *HyprlandWindows) hyprctl(ctx context.Context, args ...string) ([]byte, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if h.output != nil {
		return h.output(ctx, args...)
	}
	return exec.CommandContext(ctx, "hyprctl", args...).Output()
}

func (h *HyprlandWindows) Foreground(ctx context.Context) (Window, error) {
	out, err := h.hyprctl(ctx, "activewindow", "-j")
	if err != nil {
		return Window{}, fmt.Errorf("hyprctl activewindow: %w", err)
	}
	var w Window
	if err := json.Unmarshal(out, &w); err != nil {
		return Window{}, fmt.Errorf("parse hyprctl output: %w", err)
	}
	if w.Address == "" {
		return Window{}, ErrNoWindow
	}
	return w, nil
}

func (h *HyprlandWindows) Focus(ctx context.Context, w Window) error {
	if w.Address == "" {
		return ErrNoWindow
	}
	out, err := h.hyprctl(ctx, "dispatch", "focuswindow", "address:"+w.Address)
	if err != nil {
		return fmt.Errorf("hyprctl focuswindow: %w", err)
	}
	if s := string(out); s != "" && s != "ok" && s != "ok\n" {
		return fmt.Errorf("hyprctl focuswindow: %s", s)
	}
	return nil
}

// NopWindows leaves focus to the compositor.
type NopWindows struct{}

func (NopWindows) Foreground(context.Context) (Window, error) { return Window{}, ErrNoWindow }
func (NopWindows) Focus(context.Context, Window) error        { return nil }
