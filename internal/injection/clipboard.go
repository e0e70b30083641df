package injection

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

// ClipboardController reads and writes the system clipboard.
type ClipboardController interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

// NewClipboard returns the controller for kind: "wayland" uses wl-clipboard
// directly, "system" goes through atotto/clipboard (wl-clipboard, xclip or
// xsel, whichever the session provides).
func NewClipboard(kind string, timeout time.Duration) (ClipboardController, error) {
	switch kind {
	case "wayland", "":
		return &WaylandClipboard{Timeout: timeout}, nil
	case "system":
		return SystemClipboard{}, nil
	default:
		return nil, fmt.Errorf("unsupported clipboard: %s", kind)
	}
}

// WaylandClipboard shells out to wl-copy / wl-paste.
type WaylandClipboard struct {
	Timeout time.Duration
	// output runs wl-paste and returns stdout; nil means exec.
	output func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (c *WaylandClipboard) Read(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	run := c.output
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}
	output, err := run(ctx, "wl-paste", "--no-newline")
	if err != nil {
		// wl-paste exits 1 without output when nothing is copied
		var exit interface{ ExitCode() int }
		if errors.As(err, &exit) && exit.ExitCode() == 1 && len(output) == 0 {
			return "", nil
		}
		return "", fmt.Errorf("wl-paste failed: %w", err)
	}
	return string(output), nil
}

func (c *WaylandClipboard) Write(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "wl-copy")
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wl-copy failed: %w", err)
	}
	return nil
}

func (c *WaylandClipboard) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return c.Timeout
}

func checkClipboardAvailable() error {
	if _, err := exec.LookPath("wl-copy"); err != nil {
		return fmt.Errorf("wl-copy not found: %w (install wl-clipboard)", err)
	}
	if _, err := exec.LookPath("wl-paste"); err != nil {
		return fmt.Errorf("wl-paste not found: %w (install wl-clipboard)", err)
	}
	return nil
}

// SystemClipboard delegates to atotto/clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if clipboard.Unsupported {
		return "", fmt.Errorf("no clipboard utility available")
	}
	return clipboard.ReadAll()
}

func (SystemClipboard) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return fmt.Errorf("no clipboard utility available")
	}
	return clipboard.WriteAll(text)
}
