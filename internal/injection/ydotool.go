package injection

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ydotoolBackend synthesizes Ctrl+V through the uinput daemon. It works on
// any compositor but needs ydotoold running.
type ydotoolBackend struct {
	timeout time.Duration
	run     runFunc
}

func NewYdotoolBackend(timeout time.Duration) PasteBackend {
	return &ydotoolBackend{timeout: timeout, run: runCommand}
}

func (y *ydotoolBackend) Name() string {
	return "ydotool"
}

func (y *ydotoolBackend) Available() error {
	if _, err := exec.LookPath("ydotool"); err != nil {
		return fmt.Errorf("ydotool not found: %w (install ydotool package)", err)
	}

	// Only check socket if ydotoold exists
	if _, err := exec.LookPath("ydotoold"); err == nil {
		socketPath := y.getSocketPath()
		if socketPath == "" {
			return fmt.Errorf("ydotoold socket not found - ensure ydotoold is running")
		}

		// ydotoold v1.0.4+ uses SOCK_DGRAM (unixgram) sockets.
		// Try unixgram first, then fall back to stream for older versions.
		conn, err := net.Dial("unixgram", socketPath)
		if err != nil {
			conn, err = net.DialTimeout("unix", socketPath, 500*time.Millisecond)
		}
		if err != nil {
			return fmt.Errorf("ydotoold not responding at %s: %w", socketPath, err)
		}
		conn.Close()
	}

	return nil
}

func (y *ydotoolBackend) getSocketPath() string {
	if sock := os.Getenv("YDOTOOL_SOCKET"); sock != "" {
		if _, err := os.Stat(sock); err == nil {
			return sock
		}
	}

	paths := []string{
		"/run/user/" + fmt.Sprint(os.Getuid()) + "/.ydotool_socket",
		"/tmp/.ydotool_socket",
	}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		paths = append([]string{filepath.Join(xdg, ".ydotool_socket")}, paths...)
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Paste presses and releases KEY_LEFTCTRL (29) around KEY_V (47).
func (y *ydotoolBackend) Paste(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	if err := y.run(ctx, "ydotool", "key", "29:1", "47:1", "47:0", "29:0"); err != nil {
		return fmt.Errorf("ydotool failed: %w", err)
	}
	return nil
}
