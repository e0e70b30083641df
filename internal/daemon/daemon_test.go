package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/holdtype/internal/bus"
	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/notify"
	"github.com/leonardotrapani/holdtype/internal/storage"
	"github.com/leonardotrapani/holdtype/internal/testutil"
)

type harness struct {
	d        *Daemon
	client   *bus.Client
	injector *testutil.MockInjector
	store    *storage.MemoryStore
	pidPath  string
	done     chan error
}

func newHarness(t *testing.T, text string, store *storage.MemoryStore) *harness {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	dir := t.TempDir()
	h := &harness{
		injector: testutil.NewMockInjector(),
		store:    store,
		pidPath:  filepath.Join(dir, bus.PidName),
		done:     make(chan error, 1),
	}
	sock := filepath.Join(dir, bus.SockName)

	d, err := New(testutil.WriteConfigFile(t, nil),
		WithStore(store),
		WithListener(testutil.NewMockListener(text)),
		WithInjector(h.injector),
		WithMonitor(testutil.UnavailableMonitor{}),
		WithPresenter(notify.Nop{}),
		WithRuntimePaths(sock, h.pidPath),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.d = d
	h.client = &bus.Client{Path: sock, Timeout: 2 * time.Second}
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	go func() { h.done <- h.d.Run(context.Background()) }()

	for i := 0; i < 100; i++ {
		if _, err := h.client.Send(context.Background(), bus.VerbVersion); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon failed to start within timeout")
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	if _, err := h.client.Send(context.Background(), bus.VerbQuit); err != nil {
		t.Errorf("quit: %v", err)
	}
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit within timeout")
	}
	if _, err := os.Stat(h.pidPath); !os.IsNotExist(err) {
		t.Error("pid file should be removed on exit")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	testutil.WaitForCondition(t, what, cond, 5*time.Second)
}

func TestSocketTriggeredDictation(t *testing.T) {
	h := newHarness(t, "hello world", nil)
	h.start(t)
	defer h.stop(t)
	ctx := context.Background()

	if _, err := h.client.Send(ctx, bus.VerbPress); err != nil {
		t.Fatalf("press: %v", err)
	}
	if _, err := h.client.Send(ctx, bus.VerbRelease); err != nil {
		t.Fatalf("release: %v", err)
	}

	waitFor(t, "injection", func() bool { return len(h.injector.GetInjectedTexts()) == 1 })
	if got := h.injector.GetInjectedTexts()[0]; got != "Hello world." {
		t.Errorf("injected %q, want %q", got, "Hello world.")
	}

	var rows []storage.Speech
	waitFor(t, "history", func() bool {
		if err := h.client.Call(ctx, &rows, bus.VerbHistory); err != nil {
			t.Fatalf("history: %v", err)
		}
		return len(rows) == 1
	})
	if rows[0].Text != "Hello world." || rows[0].Owner != "default" {
		t.Errorf("history row = %+v", rows[0])
	}
}

func TestStatusReportsMissingHotkey(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)
	defer h.stop(t)

	var st bus.Status
	waitFor(t, "hotkey notice", func() bool {
		if err := h.client.Call(context.Background(), &st, bus.VerbStatus); err != nil {
			t.Fatalf("status: %v", err)
		}
		return st.Notice != ""
	})
	if st.Notice != notify.MsgHotkeyUnavailable {
		t.Errorf("notice = %q", st.Notice)
	}
	if st.State != "idle" || !st.ModelLoaded || st.HotkeyAvailable || st.Hotkey != "ctrl+win" || st.User != "default" {
		t.Errorf("status = %+v", st)
	}
}

func TestDictionaryAndSnippetVerbs(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)
	defer h.stop(t)
	ctx := context.Background()

	// prime the cache so the add has to invalidate it
	if words := h.d.corrector.Words(ctx, "default"); len(words) != 0 {
		t.Fatalf("unexpected words %v", words)
	}

	var added storage.DictionaryEntry
	if err := h.client.Call(ctx, &added, bus.VerbDictAdd, "ShadCN"); err != nil {
		t.Fatalf("dict-add: %v", err)
	}
	if added.Word != "ShadCN" || added.ID == "" {
		t.Errorf("added = %+v", added)
	}
	if words := h.d.corrector.Words(ctx, "default"); len(words) != 1 || words[0] != "ShadCN" {
		t.Errorf("correction cache not invalidated: %v", words)
	}

	var entries []storage.DictionaryEntry
	if err := h.client.Call(ctx, &entries, bus.VerbDictList); err != nil || len(entries) != 1 {
		t.Fatalf("dict-list = %v, %v", entries, err)
	}

	if _, err := h.client.Send(ctx, bus.VerbDictRemove, "shadcn"); err != nil {
		t.Errorf("dict-rm by word: %v", err)
	}
	_, err := h.client.Send(ctx, bus.VerbDictRemove, "shadcn")
	var remote *bus.RemoteError
	if !errors.As(err, &remote) {
		t.Errorf("removing a missing word should fail, got %v", err)
	}

	var snip storage.SnippetEntry
	if err := h.client.Call(ctx, &snip, bus.VerbSnipAdd, "brb", "be right back"); err != nil {
		t.Fatalf("snip-add: %v", err)
	}
	if snip.Replacement != "be right back" {
		t.Errorf("snippet = %+v", snip)
	}
	if got := h.d.corrector.Correct(ctx, "default", "ok brb"); got != "ok be right back" {
		t.Errorf("Correct = %q", got)
	}
	if _, err := h.client.Send(ctx, bus.VerbSnipRemove, snip.ID); err != nil {
		t.Errorf("snip-rm by id: %v", err)
	}
	var snippets []storage.SnippetEntry
	if err := h.client.Call(ctx, &snippets, bus.VerbSnipList); err != nil || len(snippets) != 0 {
		t.Errorf("snip-list = %v, %v", snippets, err)
	}

	if _, err := h.client.Send(ctx, bus.VerbSnipAdd, "only-shortcut"); err == nil {
		t.Error("snip-add without replacement should fail")
	}
}

func TestDictImportVerb(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)
	defer h.stop(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "words.yaml")
	content := "dictionary:\n  - Kubernetes\n  - ShadCN\nsnippets:\n  - shortcut: brb\n    replacement: be right back\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var res storage.ImportResult
	if err := h.client.Call(ctx, &res, bus.VerbDictImport, path); err != nil {
		t.Fatalf("dict-import: %v", err)
	}
	if res.Words != 2 || res.Snippets != 1 {
		t.Errorf("import result = %+v", res)
	}
	if words := h.d.corrector.Words(ctx, "default"); len(words) != 2 {
		t.Errorf("words after import = %v", words)
	}
}

func TestStyleAndHotkeyVerbs(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)
	defer h.stop(t)
	ctx := context.Background()

	if got, err := h.client.Send(ctx, bus.VerbStyle); err != nil || got != "formal" {
		t.Errorf("style = %q, %v", got, err)
	}
	if got, err := h.client.Send(ctx, bus.VerbStyle, "Very_Casual"); err != nil || got != "very_casual" {
		t.Errorf("set style = %q, %v", got, err)
	}
	if pref, _ := h.store.GetUserStylePreference(ctx, "default"); pref != "very_casual" {
		t.Errorf("stored style = %q", pref)
	}
	if _, err := h.client.Send(ctx, bus.VerbStyle, "loud"); err == nil {
		t.Error("unknown style should fail")
	}

	if got, err := h.client.Send(ctx, bus.VerbHotkey, "ctrl+alt+space"); err != nil || got != "ctrl+alt+space" {
		t.Errorf("hotkey = %q, %v", got, err)
	}
	if got := h.d.detector.Configuration().String(); got != "ctrl+alt+space" {
		t.Errorf("detector combination = %s", got)
	}
	pref, ok, _ := h.store.GetUserHotkeyPreference(ctx, "default")
	if !ok || !pref.Ctrl || !pref.Alt || !pref.HasKey {
		t.Errorf("stored hotkey = %+v, %v", pref, ok)
	}
	if _, err := h.client.Send(ctx, bus.VerbHotkey, "ctrl+alt+q+w"); err == nil {
		t.Error("two keys should fail")
	}
	if _, err := h.client.Send(ctx, "dance"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown verb = %v", err)
	}
}

func TestSavedHotkeyOverridesConfig(t *testing.T) {
	store := storage.NewMemoryStore()
	pref := preferenceFromHotkey(hotkey.Configuration{Alt: true, Key: 0x0043, HasKey: true})
	if err := store.SetUserHotkeyPreference(context.Background(), "default", pref); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, "", store)
	defer h.d.Close()
	if got := h.d.detector.Configuration().String(); got != "alt+f9" {
		t.Errorf("combination = %s, want alt+f9", got)
	}
}

func TestConfigChangeAppliesLiveSettings(t *testing.T) {
	h := newHarness(t, "", nil)
	defer h.d.Close()

	old := h.d.configMgr.GetConfig()
	next := h.d.configMgr.GetConfig()
	next.Hotkey = config.HotkeyConfig{Shift: true, Key: "f9", ConfirmDelay: old.Hotkey.ConfirmDelay}
	next.Correction.FuzzyThreshold = 0.9
	next.Session.TrailingTimeout = 9 * time.Second

	h.d.onConfigChange(old, next)

	if got := h.d.detector.Configuration().String(); got != "shift+f9" {
		t.Errorf("combination = %s", got)
	}
	if got := h.d.corrector.Thresholds().Fuzzy; got != 0.9 {
		t.Errorf("fuzzy threshold = %v", got)
	}
}

func TestSecondDaemonRefused(t *testing.T) {
	h := newHarness(t, "", nil)
	if err := os.WriteFile(h.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatal(err)
	}
	err := h.d.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("Run = %v, want already running", err)
	}
}
