package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/notify"
	"github.com/leonardotrapani/holdtype/internal/observe"
	"github.com/leonardotrapani/holdtype/internal/storage"
	"github.com/leonardotrapani/holdtype/internal/transcriber"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeListener struct {
	mu       sync.Mutex
	loaded   bool
	startErr error
	starts   int
	stops    int
	ch       chan transcriber.Result
	onStop   func(ch chan transcriber.Result)
}

func (l *fakeListener) StartListening(context.Context) (<-chan transcriber.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return nil, l.startErr
	}
	l.starts++
	l.ch = make(chan transcriber.Result, 16)
	return l.ch, nil
}

func (l *fakeListener) StopListening(context.Context) error {
	l.mu.Lock()
	l.stops++
	ch, onStop := l.ch, l.onStop
	l.mu.Unlock()
	if onStop != nil {
		onStop(ch)
	}
	return nil
}

func (l *fakeListener) IsModelLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *fakeListener) emit(r transcriber.Result) {
	l.mu.Lock()
	ch := l.ch
	l.mu.Unlock()
	ch <- r
}

func (l *fakeListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts, l.stops
}

// finalOnStop emits text as the trailing final and closes the channel, the
// way a real listener does when StopListening returns.
func finalOnStop(text string) func(ch chan transcriber.Result) {
	return func(ch chan transcriber.Result) {
		ch <- transcriber.Result{Text: text, IsFinal: true, NoSpeech: text == ""}
		close(ch)
	}
}

type fakeCorrector struct {
	replace map[string]string
	words   []string
}

func (c *fakeCorrector) Correct(_ context.Context, _, text string) string {
	for from, to := range c.replace {
		text = strings.ReplaceAll(text, from, to)
	}
	return text
}

func (c *fakeCorrector) Words(context.Context, string) []string { return c.words }

type fakeStore struct {
	mu      sync.Mutex
	style   string
	saved   []string
	saveErr error
}

func (s *fakeStore) GetUserStylePreference(context.Context, string) (string, error) {
	return s.style, nil
}

func (s *fakeStore) SaveSpeech(_ context.Context, user, text string, d time.Duration) (storage.Speech, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return storage.Speech{}, s.saveErr
	}
	s.saved = append(s.saved, text)
	return storage.Speech{Owner: user, Text: text, DurationMs: d.Milliseconds()}, nil
}

func (s *fakeStore) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

type fakeInjector struct {
	mu       sync.Mutex
	captures int
	injected []string
	err      error
}

func (i *fakeInjector) CaptureTarget(context.Context) {
	i.mu.Lock()
	i.captures++
	i.mu.Unlock()
}

func (i *fakeInjector) Inject(_ context.Context, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.injected = append(i.injected, text)
	return i.err
}

func (i *fakeInjector) texts() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.injected...)
}

type recordingPresenter struct {
	mu       sync.Mutex
	states   []notify.State
	previews []string
	notices  []string
	errors   []string
}

func (p *recordingPresenter) SetState(s notify.State) {
	p.mu.Lock()
	p.states = append(p.states, s)
	p.mu.Unlock()
}

func (p *recordingPresenter) SetRecognizedText(text string) {
	p.mu.Lock()
	p.previews = append(p.previews, text)
	p.mu.Unlock()
}

func (p *recordingPresenter) Notify(msg string) {
	p.mu.Lock()
	p.notices = append(p.notices, msg)
	p.mu.Unlock()
}

func (p *recordingPresenter) Error(msg string) {
	p.mu.Lock()
	p.errors = append(p.errors, msg)
	p.mu.Unlock()
}

func (p *recordingPresenter) snapshot() (states []notify.State, notices, errs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.State(nil), p.states...),
		append([]string(nil), p.notices...),
		append([]string(nil), p.errors...)
}

type harness struct {
	orch      *Orchestrator
	listener  *fakeListener
	corrector *fakeCorrector
	store     *fakeStore
	injector  *fakeInjector
	presenter *recordingPresenter
	reader    *sdkmetric.ManualReader
	hotkeys   chan hotkey.Event
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		listener:  &fakeListener{loaded: true},
		corrector: &fakeCorrector{},
		store:     &fakeStore{},
		injector:  &fakeInjector{},
		presenter: &recordingPresenter{},
		reader:    reader,
		hotkeys:   make(chan hotkey.Event, 4),
	}
	h.orch = New(cfg, h.listener, h.corrector, h.store, h.injector, h.presenter, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.orch.Run(ctx, h.hotkeys)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func testConfig() Config {
	return Config{
		User:            "alice",
		TrailingPoll:    10 * time.Millisecond,
		TrailingTimeout: 2 * time.Second,
		StopGrace:       100 * time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) waitState(t *testing.T, want notify.State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return h.orch.Status().State == want })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TrailingPoll != 200*time.Millisecond {
		t.Errorf("TrailingPoll = %v, want 200ms", cfg.TrailingPoll)
	}
	if cfg.TrailingTimeout != 5*time.Second {
		t.Errorf("TrailingTimeout = %v, want 5s", cfg.TrailingTimeout)
	}
	if cfg.StopGrace != 2*time.Second {
		t.Errorf("StopGrace = %v, want 2s", cfg.StopGrace)
	}
}

func TestOrchestrator_Dictation(t *testing.T) {
	h := newHarness(t, testConfig())
	h.listener.onStop = finalOnStop("again")

	h.hotkeys <- hotkey.Event{Type: hotkey.Pressed}
	h.waitState(t, notify.Listening)

	h.listener.emit(transcriber.Result{Text: "hel"})
	waitFor(t, "partial preview", func() bool { return h.orch.Preview() == "hel" })

	h.listener.emit(transcriber.Result{Text: "hello world", IsFinal: true})
	waitFor(t, "final preview", func() bool { return h.orch.Preview() == "hello world" })

	h.listener.emit(transcriber.Result{Text: "aga"})
	waitFor(t, "partial after final", func() bool { return h.orch.Preview() == "hello world aga" })

	h.hotkeys <- hotkey.Event{Type: hotkey.Released}
	waitFor(t, "injection", func() bool { return len(h.injector.texts()) == 1 })
	h.waitState(t, notify.Idle)

	if got := h.injector.texts()[0]; got != "Hello world again." {
		t.Errorf("injected %q, want %q", got, "Hello world again.")
	}
	if got := h.store.history(); len(got) != 1 || got[0] != "Hello world again." {
		t.Errorf("history = %v", got)
	}
	if h.injector.captures != 1 {
		t.Errorf("CaptureTarget calls = %d, want 1", h.injector.captures)
	}

	states, notices, errs := h.presenter.snapshot()
	want := []notify.State{notify.Listening, notify.Recognizing, notify.Idle}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}
	if len(notices) != 0 || len(errs) != 0 {
		t.Errorf("unexpected notices %v errors %v", notices, errs)
	}
	if h.orch.Preview() != "" {
		t.Errorf("preview should be cleared on idle, got %q", h.orch.Preview())
	}
}

func TestOrchestrator_NoSpeechAfterTrailingTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.TrailingTimeout = 150 * time.Millisecond
	h := newHarness(t, cfg)
	// StopListening never produces a final nor closes the channel.

	h.orch.HotkeyPressed()
	h.waitState(t, notify.Listening)
	released := time.Now()
	h.orch.HotkeyReleased()
	h.waitState(t, notify.Recognizing)
	h.waitState(t, notify.Idle)

	if elapsed := time.Since(released); elapsed < cfg.TrailingTimeout {
		t.Errorf("went idle after %v, before the %v trailing timeout", elapsed, cfg.TrailingTimeout)
	}
	_, notices, _ := h.presenter.snapshot()
	if len(notices) != 1 || notices[0] != notify.MsgNoSpeech {
		t.Errorf("notices = %v, want no-speech notice", notices)
	}
	if len(h.injector.texts()) != 0 {
		t.Error("no injection expected")
	}
	if len(h.store.history()) != 0 {
		t.Error("no history write expected")
	}

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	if !hasOutcome(rm, observe.OutcomeNoSpeech) {
		t.Error("no_speech outcome not recorded")
	}
}

func TestOrchestrator_NoSpeechFinalEndsEarly(t *testing.T) {
	cfg := testConfig()
	cfg.TrailingTimeout = time.Minute
	h := newHarness(t, cfg)
	h.listener.onStop = finalOnStop("")

	h.orch.HotkeyPressed()
	h.waitState(t, notify.Listening)
	h.orch.HotkeyReleased()
	h.waitState(t, notify.Idle)

	_, notices, _ := h.presenter.snapshot()
	if len(notices) != 1 || notices[0] != notify.MsgNoSpeech {
		t.Errorf("notices = %v", notices)
	}
}

func TestOrchestrator_ModelNotLoaded(t *testing.T) {
	h := newHarness(t, testConfig())
	h.listener.mu.Lock()
	h.listener.loaded = false
	h.listener.mu.Unlock()

	h.orch.HotkeyPressed()
	waitFor(t, "model notice", func() bool {
		_, notices, _ := h.presenter.snapshot()
		return len(notices) == 1
	})

	_, notices, _ := h.presenter.snapshot()
	if notices[0] != notify.MsgModelLoading {
		t.Errorf("notice = %q", notices[0])
	}
	if starts, _ := h.listener.counts(); starts != 0 {
		t.Error("listener must not start while the model loads")
	}
	if h.orch.Status().State != notify.Idle {
		t.Error("state must stay idle")
	}
}

func TestOrchestrator_PressWhileBusyIgnored(t *testing.T) {
	h := newHarness(t, testConfig())
	h.listener.onStop = finalOnStop("one")

	h.orch.HotkeyPressed()
	h.waitState(t, notify.Listening)
	h.orch.HotkeyPressed()
	h.orch.HotkeyReleased()
	h.waitState(t, notify.Idle)

	if starts, stops := h.listener.counts(); starts != 1 || stops != 1 {
		t.Errorf("starts/stops = %d/%d, want 1/1", starts, stops)
	}
	if got := h.injector.texts(); len(got) != 1 {
		t.Errorf("injected = %v, want one delivery", got)
	}
}

func TestOrchestrator_CaptureErrorAborts(t *testing.T) {
	h := newHarness(t, testConfig())

	h.orch.HotkeyPressed()
	h.waitState(t, notify.Listening)
	h.listener.emit(transcriber.Result{Text: "partial words", IsFinal: true})
	h.listener.emit(transcriber.Result{Err: errors.New("pw-record exited")})
	h.waitState(t, notify.Idle)

	_, _, errs := h.presenter.snapshot()
	if len(errs) != 1 || !strings.Contains(errs[0], "pw-record exited") {
		t.Errorf("errors = %v", errs)
	}
	if len(h.injector.texts()) != 0 || len(h.store.history()) != 0 {
		t.Error("aborted session must not inject or persist")
	}
	waitFor(t, "cleanup stop", func() bool {
		_, stops := h.listener.counts()
		return stops == 1
	})
}

func TestOrchestrator_StartError(t *testing.T) {
	h := newHarness(t, testConfig())
	h.listener.mu.Lock()
	h.listener.startErr = errors.New("pw-record not found")
	h.listener.mu.Unlock()

	h.orch.HotkeyPressed()
	waitFor(t, "error", func() bool {
		_, _, errs := h.presenter.snapshot()
		return len(errs) == 1
	})
	if h.orch.Status().State != notify.Idle {
		t.Error("state must stay idle")
	}
}

func TestOrchestrator_CorrectionAndStylePreference(t *testing.T) {
	h := newHarness(t, testConfig())
	h.corrector.replace = map[string]string{"shad cn": "ShadCN"}
	h.corrector.words = []string{"ShadCN"}
	h.store.style = "casual"
	h.listener.onStop = finalOnStop("i love shad cn")

	h.orch.HotkeyPressed()
	h.waitState(t, notify.Listening)
	h.orch.HotkeyReleased()
	waitFor(t, "injection", func() bool { return len(h.injector.texts()) == 1 })

	if got := h.injector.texts()[0]; got != "I love ShadCN." {
		t.Errorf("injected %q, want %q", got, "I love ShadCN.")
	}
}

func TestOrchestrator_DeliveryFailuresDoNotEscalate(t *testing.T) {
	h := newHarness(t, testConfig())
	h.injector.err = errors.New("paste failed")
	h.store.saveErr = errors.New("disk full")
	h.listener.onStop = finalOnStop("ship it")

	h.orch.HotkeyPressed()
	h.waitState(t, notify.Listening)
	h.orch.HotkeyReleased()
	waitFor(t, "injection", func() bool { return len(h.injector.texts()) == 1 })
	h.waitState(t, notify.Idle)

	_, notices, errs := h.presenter.snapshot()
	if len(notices) != 0 || len(errs) != 0 {
		t.Errorf("failures escalated: notices %v errors %v", notices, errs)
	}
}

func TestOrchestrator_ConsecutiveSessions(t *testing.T) {
	h := newHarness(t, testConfig())

	for i, text := range []string{"first", "second"} {
		h.listener.mu.Lock()
		h.listener.onStop = finalOnStop(text)
		h.listener.mu.Unlock()

		h.orch.HotkeyPressed()
		h.waitState(t, notify.Listening)
		h.orch.HotkeyReleased()
		waitFor(t, "delivery", func() bool { return len(h.injector.texts()) == i+1 })
		h.waitState(t, notify.Idle)
	}

	got := h.injector.texts()
	if got[0] != "First." || got[1] != "Second." {
		t.Errorf("injected = %v", got)
	}
}

func hasOutcome(rm metricdata.ResourceMetrics, outcome string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "holdtype.sessions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return false
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("outcome"); ok && v.AsString() == outcome && dp.Value > 0 {
					return true
				}
			}
		}
	}
	return false
}
