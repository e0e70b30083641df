package injection

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeClipboard struct {
	mu         sync.Mutex
	content    string
	writes     []string
	dropWrites int // number of upcoming writes to lose
	readErr    error
	writeErr   error
}

func (c *fakeClipboard) Read(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return "", c.readErr
	}
	return c.content, nil
}

func (c *fakeClipboard) Write(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, text)
	if c.dropWrites > 0 {
		c.dropWrites--
		return nil
	}
	c.content = text
	return nil
}

func (c *fakeClipboard) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

func (c *fakeClipboard) set(s string) {
	c.mu.Lock()
	c.content = s
	c.mu.Unlock()
}

type fakeBackend struct {
	name     string
	availErr error
	pasteErr error
	pastes   int
}

func (b *fakeBackend) Name() string     { return b.name }
func (b *fakeBackend) Available() error { return b.availErr }
func (b *fakeBackend) Paste(context.Context) error {
	b.pastes++
	return b.pasteErr
}

type fakeWindows struct {
	current Window
	focused []Window
	err     error
}

func (w *fakeWindows) Foreground(context.Context) (Window, error) {
	if w.current.Address == "" {
		return Window{}, ErrNoWindow
	}
	return w.current, nil
}

func (w *fakeWindows) Focus(_ context.Context, win Window) error {
	w.focused = append(w.focused, win)
	return w.err
}

func newTestInjector(clip *fakeClipboard, win *fakeWindows, backends ...PasteBackend) *TextInjector {
	cfg := DefaultConfig()
	cfg.RestoreDelay = 0
	inj := NewTextInjector(cfg, clip, win, backends)
	inj.sleep = func(context.Context, time.Duration) {}
	return inj
}

func TestTextInjector_PasteAndRestore(t *testing.T) {
	clip := &fakeClipboard{content: "previous"}
	win := &fakeWindows{current: Window{Address: "0x1", Class: "kitty"}}
	paster := &fakeBackend{name: "ydotool"}
	inj := newTestInjector(clip, win, paster)

	ctx := context.Background()
	inj.CaptureTarget(ctx)
	if err := inj.Inject(ctx, "hello world"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	inj.Wait()

	if len(win.focused) != 1 || win.focused[0].Address != "0x1" {
		t.Errorf("focused = %v, want the captured window", win.focused)
	}
	if paster.pastes != 1 {
		t.Errorf("pastes = %d, want 1", paster.pastes)
	}
	if want := []string{"hello world", "previous"}; !reflect.DeepEqual(clip.writes, want) {
		t.Errorf("clipboard writes = %v, want %v", clip.writes, want)
	}
	if clip.get() != "previous" {
		t.Errorf("clipboard = %q, want restored", clip.get())
	}
}

func TestTextInjector_PasteFailureKeepsText(t *testing.T) {
	clip := &fakeClipboard{content: "previous"}
	broken := &fakeBackend{name: "ydotool", pasteErr: errors.New("uinput denied")}
	missing := &fakeBackend{name: "wtype", availErr: errors.New("not found")}
	inj := newTestInjector(clip, &fakeWindows{}, broken, missing)

	err := inj.Inject(context.Background(), "final text")
	if !errors.Is(err, ErrPasteFailed) {
		t.Fatalf("Inject() error = %v, want ErrPasteFailed", err)
	}
	inj.Wait()
	if clip.get() != "final text" {
		t.Errorf("clipboard = %q, want the final text", clip.get())
	}
	if missing.pastes != 0 {
		t.Error("unavailable backend should not be used")
	}
}

func TestTextInjector_FirstAvailableBackendWins(t *testing.T) {
	clip := &fakeClipboard{}
	first := &fakeBackend{name: "ydotool", availErr: errors.New("no socket")}
	second := &fakeBackend{name: "wtype"}
	third := &fakeBackend{name: "other"}
	inj := newTestInjector(clip, &fakeWindows{}, first, second, third)

	if err := inj.Inject(context.Background(), "x"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if first.pastes != 0 || second.pastes != 1 || third.pastes != 0 {
		t.Errorf("pastes = %d/%d/%d, want 0/1/0", first.pastes, second.pastes, third.pastes)
	}
}

func TestTextInjector_VerificationRetry(t *testing.T) {
	clip := &fakeClipboard{content: "old", dropWrites: 1}
	inj := newTestInjector(clip, &fakeWindows{}, &fakeBackend{name: "wtype"})

	if err := inj.Inject(context.Background(), "dictated"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	inj.Wait()
	if len(clip.writes) < 2 || clip.writes[0] != "dictated" || clip.writes[1] != "dictated" {
		t.Errorf("writes = %v, want the text written twice", clip.writes)
	}
}

func TestTextInjector_NoRestoreOverNewerCopy(t *testing.T) {
	clip := &fakeClipboard{content: "old"}
	inj := newTestInjector(clip, &fakeWindows{}, &fakeBackend{name: "wtype"})
	released := make(chan struct{})
	inj.sleep = func(context.Context, time.Duration) { <-released }

	if err := inj.Inject(context.Background(), "dictated"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	clip.set("user copied this")
	close(released)
	inj.Wait()

	if clip.get() != "user copied this" {
		t.Errorf("clipboard = %q, restore must not clobber a newer copy", clip.get())
	}
}

func TestTextInjector_ClipboardWriteFailure(t *testing.T) {
	clip := &fakeClipboard{writeErr: errors.New("wl-copy missing")}
	paster := &fakeBackend{name: "wtype"}
	inj := newTestInjector(clip, &fakeWindows{}, paster)

	if err := inj.Inject(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if paster.pastes != 0 {
		t.Error("must not paste when the clipboard could not be set")
	}
}

func TestTextInjector_EmptyTextIsNoop(t *testing.T) {
	clip := &fakeClipboard{content: "keep"}
	paster := &fakeBackend{name: "wtype"}
	inj := newTestInjector(clip, &fakeWindows{}, paster)

	if err := inj.Inject(context.Background(), ""); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(clip.writes) != 0 || paster.pastes != 0 {
		t.Error("empty text should not touch clipboard or paste")
	}
}

func TestTextInjector_TargetIsConsumed(t *testing.T) {
	win := &fakeWindows{current: Window{Address: "0xabc"}}
	inj := newTestInjector(&fakeClipboard{}, win, &fakeBackend{name: "wtype"})
	ctx := context.Background()

	inj.CaptureTarget(ctx)
	_ = inj.Inject(ctx, "one")
	_ = inj.Inject(ctx, "two")
	inj.Wait()

	if len(win.focused) != 1 {
		t.Errorf("focus calls = %d, want 1", len(win.focused))
	}
}

func TestHyprlandWindows(t *testing.T) {
	var calls [][]string
	h := &HyprlandWindows{output: func(_ context.Context, args ...string) ([]byte, error) {
		calls = append(calls, args)
		if args[0] == "activewindow" {
			return []byte(`{"address":"0x55d1","class":"firefox","title":"Docs","pid":42}`), nil
		}
		return []byte("ok"), nil
	}}

	ctx := context.Background()
	w, err := h.Foreground(ctx)
	if err != nil {
		t.Fatalf("Foreground() error = %v", err)
	}
	if w.Address != "0x55d1" || w.Class != "firefox" {
		t.Errorf("window = %+v", w)
	}
	if err := h.Focus(ctx, w); err != nil {
		t.Fatalf("Focus() error = %v", err)
	}
	want := []string{"dispatch", "focuswindow", "address:0x55d1"}
	if !reflect.DeepEqual(calls[1], want) {
		t.Errorf("focus args = %v, want %v", calls[1], want)
	}
}

func TestHyprlandWindows_NoActiveWindow(t *testing.T) {
	h := &HyprlandWindows{output: func(context.Context, ...string) ([]byte, error) {
		return []byte(`{}`), nil
	}}
	if _, err := h.Foreground(context.Background()); !errors.Is(err, ErrNoWindow) {
		t.Errorf("error = %v, want ErrNoWindow", err)
	}
}

func TestPasteBackendCommands(t *testing.T) {
	var got []string
	record := func(_ context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}

	y := &ydotoolBackend{timeout: time.Second, run: record}
	if err := y.Paste(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := []string{"ydotool", "key", "29:1", "47:1", "47:0", "29:0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ydotool = %v, want %v", got, want)
	}

	w := &wtypeBackend{timeout: time.Second, run: record}
	if err := w.Paste(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := []string{"wtype", "-M", "ctrl", "v", "-m", "ctrl"}; !reflect.DeepEqual(got, want) {
		t.Errorf("wtype = %v, want %v", got, want)
	}
}

func TestNewBackends(t *testing.T) {
	backends, err := NewBackends([]string{"wtype", "ydotool"}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if backends[0].Name() != "wtype" || backends[1].Name() != "ydotool" {
		t.Errorf("order not preserved")
	}
	if _, err := NewBackends([]string{"xdotool"}, time.Second); err == nil {
		t.Error("expected error for unknown backend")
	}
}

type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitError) ExitCode() int { return int(e) }

func TestWaylandClipboardRead(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		err     error
		want    string
		wantErr bool
	}{
		{name: "content", out: "copied text", want: "copied text"},
		{name: "nothing copied", err: exitError(1), want: ""},
		{name: "compositor unreachable", err: exitError(2), wantErr: true},
		{name: "wl-paste missing", err: errors.New(`exec: "wl-paste": executable file not found in $PATH`), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &WaylandClipboard{output: func(_ context.Context, name string, args ...string) ([]byte, error) {
				if name != "wl-paste" {
					t.Errorf("ran %s, want wl-paste", name)
				}
				return []byte(tt.out), tt.err
			}}
			got, err := c.Read(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Read() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextInjector_UnreadableClipboardIsNotRestored(t *testing.T) {
	clip := &fakeClipboard{content: "previous", readErr: errors.New("wl-paste failed: exit status 2")}
	paster := &fakeBackend{name: "wtype"}
	inj := newTestInjector(clip, &fakeWindows{}, paster)

	if err := inj.Inject(context.Background(), "hello world"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	inj.Wait()

	if want := []string{"hello world"}; !reflect.DeepEqual(clip.writes, want) {
		t.Errorf("clipboard writes = %v, want %v", clip.writes, want)
	}
}

func TestNewClipboard(t *testing.T) {
	if c, err := NewClipboard("", time.Second); err != nil {
		t.Fatal(err)
	} else if _, ok := c.(*WaylandClipboard); !ok {
		t.Errorf("default clipboard = %T", c)
	}
	if c, _ := NewClipboard("system", time.Second); c == nil {
		t.Error("system clipboard is nil")
	}
	if _, err := NewClipboard("x11", time.Second); err == nil {
		t.Error("expected error")
	}
}
