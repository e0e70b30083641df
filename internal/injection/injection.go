package injection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"time"
)

// ErrPasteFailed means the clipboard holds the text but no backend could
// synthesize the paste.
var ErrPasteFailed = errors.New("injection: paste failed")

// Injector delivers final text into the window that was focused when the
// session started.
type Injector interface {
	// CaptureTarget remembers the current foreground window.
	CaptureTarget(ctx context.Context)
	Inject(ctx context.Context, text string) error
}

// PasteBackend synthesizes the paste key combination.
type PasteBackend interface {
	Name() string
	Available() error
	Paste(ctx context.Context) error
}

// Config for text injection
type Config struct {
	Clipboard      string        // "wayland" or "system"
	PasteBackends  []string      // tried in order, first available wins
	FocusSettle    time.Duration // wait after refocusing the target window
	RestoreDelay   time.Duration // wait before putting the old clipboard back
	CommandTimeout time.Duration // per external command
}

// DefaultConfig returns sensible defaults for injection
func DefaultConfig() Config {
	return Config{
		Clipboard:      "wayland",
		PasteBackends:  []string{"ydotool", "wtype"},
		FocusSettle:    50 * time.Millisecond,
		RestoreDelay:   300 * time.Millisecond,
		CommandTimeout: 3 * time.Second,
	}
}

// NewBackends builds paste backends by name.
func NewBackends(names []string, timeout time.Duration) ([]PasteBackend, error) {
	backends := make([]PasteBackend, 0, len(names))
	for _, name := range names {
		switch name {
		case "ydotool":
			backends = append(backends, NewYdotoolBackend(timeout))
		case "wtype":
			backends = append(backends, NewWtypeBackend(timeout))
		default:
			return nil, fmt.Errorf("unknown paste backend: %s", name)
		}
	}
	return backends, nil
}

// TextInjector swaps the clipboard, pastes and restores it afterwards.
type TextInjector struct {
	config    Config
	clipboard ClipboardController
	windows   ForegroundWindowController
	backends  []PasteBackend

	mu     sync.Mutex
	target *Window

	restores sync.WaitGroup
	sleep    func(ctx context.Context, d time.Duration)
}

func NewTextInjector(config Config, clipboard ClipboardController, windows ForegroundWindowController, backends []PasteBackend) *TextInjector {
	if windows == nil {
		windows = NopWindows{}
	}
	return &TextInjector{
		config:    config,
		clipboard: clipboard,
		windows:   windows,
		backends:  backends,
		sleep:     sleepCtx,
	}
}

// NewInjector wires the system implementations selected by config.
func NewInjector(config Config) (*TextInjector, error) {
	clip, err := NewClipboard(config.Clipboard, config.CommandTimeout)
	if err != nil {
		return nil, err
	}
	backends, err := NewBackends(config.PasteBackends, config.CommandTimeout)
	if err != nil {
		return nil, err
	}
	return NewTextInjector(config, clip, NewForegroundController(config.CommandTimeout), backends), nil
}

func (i *TextInjector) CaptureTarget(ctx context.Context) {
	w, err := i.windows.Foreground(ctx)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ErrNoWindow) {
			log.Printf("Injection: failed to capture foreground window: %v", err)
		}
		i.target = nil
		return
	}
	i.target = &w
}

// Inject never leaves the clipboard without the text unless writing it
// failed outright. The returned error is for reporting only.
func (i *TextInjector) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	i.mu.Lock()
	target := i.target
	i.target = nil
	i.mu.Unlock()

	if target != nil {
		if err := i.windows.Focus(ctx, *target); err != nil {
			log.Printf("Injection: failed to refocus %s: %v", target.Class, err)
		} else {
			i.sleep(ctx, i.config.FocusSettle)
		}
	}

	original, readErr := i.clipboard.Read(ctx)
	if readErr != nil {
		log.Printf("Injection: failed to save clipboard: %v", readErr)
	}

	if err := i.setClipboard(ctx, text); err != nil {
		return fmt.Errorf("failed to copy text to clipboard: %w", err)
	}

	if err := i.paste(ctx); err != nil {
		return err
	}

	if readErr == nil && original != text {
		i.restoreLater(original, text)
	}
	return nil
}

// setClipboard writes text and retries once when the read-back differs.
func (i *TextInjector) setClipboard(ctx context.Context, text string) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = i.clipboard.Write(ctx, text); err != nil {
			continue
		}
		got, rerr := i.clipboard.Read(ctx)
		if rerr != nil || got == text {
			return nil
		}
		err = fmt.Errorf("clipboard verification mismatch")
		log.Printf("Injection: clipboard read-back mismatch (attempt %d)", attempt+1)
	}
	return err
}

func (i *TextInjector) paste(ctx context.Context) error {
	var errs []error
	for _, b := range i.backends {
		if err := b.Available(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		if err := b.Paste(ctx); err != nil {
			log.Printf("Injection: %s paste failed: %v", b.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		log.Printf("Injection: pasted via %s", b.Name())
		return nil
	}
	if len(errs) == 0 {
		return fmt.Errorf("%w: no paste backend configured", ErrPasteFailed)
	}
	return fmt.Errorf("%w: %w", ErrPasteFailed, errors.Join(errs...))
}

// restoreLater puts original back unless the user copied something else in
// the meantime.
func (i *TextInjector) restoreLater(original, injected string) {
	i.restores.Add(1)
	go func() {
		defer i.restores.Done()
		ctx, cancel := context.WithTimeout(context.Background(), i.config.RestoreDelay+i.commandTimeout())
		defer cancel()

		i.sleep(ctx, i.config.RestoreDelay)
		current, err := i.clipboard.Read(ctx)
		if err != nil {
			log.Printf("Injection: skipping clipboard restore: %v", err)
			return
		}
		if current != injected {
			return
		}
		if err := i.clipboard.Write(ctx, original); err != nil {
			log.Printf("Injection: failed to restore clipboard: %v", err)
		}
	}()
}

func (i *TextInjector) commandTimeout() time.Duration {
	if i.config.CommandTimeout <= 0 {
		return 3 * time.Second
	}
	return i.config.CommandTimeout
}

// Wait blocks until pending clipboard restores are done.
func (i *TextInjector) Wait() {
	i.restores.Wait()
}

// Available reports which of the configured tools are usable.
func (i *TextInjector) Available() error {
	var errs []error
	if _, ok := i.clipboard.(*WaylandClipboard); ok {
		if err := checkClipboardAvailable(); err != nil {
			errs = append(errs, err)
		}
	}
	usable := false
	for _, b := range i.backends {
		if err := b.Available(); err != nil {
			errs = append(errs, err)
			continue
		}
		usable = true
	}
	if usable {
		return nil
	}
	return errors.Join(errs...)
}

type runFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

var _ Injector = (*TextInjector)(nil)
