package injection

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// wtypeBackend uses the virtual-keyboard protocol. wlroots compositors only.
type wtypeBackend struct {
	timeout time.Duration
	run     runFunc
}

func NewWtypeBackend(timeout time.Duration) PasteBackend {
	return &wtypeBackend{timeout: timeout, run: runCommand}
}

func (w *wtypeBackend) Name() string {
	return "wtype"
}

func (w *wtypeBackend) Available() error {
	if _, err := exec.LookPath("wtype"); err != nil {
		return fmt.Errorf("wtype not found: %w (install wtype package)", err)
	}
	return nil
}

func (w *wtypeBackend) Paste(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.run(ctx, "wtype", "-M", "ctrl", "v", "-m", "ctrl"); err != nil {
		return fmt.Errorf("wtype failed: %w", err)
	}
	return nil
}
