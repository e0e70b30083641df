package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/injection"
	"github.com/leonardotrapani/holdtype/internal/notify"
	"github.com/leonardotrapani/holdtype/internal/observe"
	"github.com/leonardotrapani/holdtype/internal/storage"
	"github.com/leonardotrapani/holdtype/internal/style"
	"github.com/leonardotrapani/holdtype/internal/transcriber"
)

type Config struct {
	User string
	// DefaultStyle applies when the user has no saved style preference.
	DefaultStyle style.Style
	// TrailingPoll and TrailingTimeout bound the wait for the last final
	// result after the hotkey is released.
	TrailingPoll    time.Duration
	TrailingTimeout time.Duration
	// StopGrace bounds the wait for in-flight recognition when capture stops.
	StopGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		User:            "default",
		DefaultStyle:    style.Formal,
		TrailingPoll:    200 * time.Millisecond,
		TrailingTimeout: 5 * time.Second,
		StopGrace:       2 * time.Second,
	}
}

// Corrector rewrites a transcript with the user's dictionary and snippets.
type Corrector interface {
	Correct(ctx context.Context, user, text string) string
	Words(ctx context.Context, user string) []string
}

// Store is the part of storage the orchestrator reads and writes.
type Store interface {
	GetUserStylePreference(ctx context.Context, user string) (string, error)
	SaveSpeech(ctx context.Context, user, text string, duration time.Duration) (storage.Speech, error)
}

type Status struct {
	State       notify.State
	Preview     string
	ModelLoaded bool
	User        string
}

type eventKind int

const (
	evPressed eventKind = iota + 1
	evReleased
	evResult
	evClosed
	evStopped
	evProcessed
)

type event struct {
	kind    eventKind
	session uint64
	result  transcriber.Result
	err     error
	outcome string
}

type session struct {
	id       uint64
	cancel   context.CancelFunc
	started  time.Time
	released time.Time
	finals   []string
	closed   bool
	done     bool
	finalize time.Duration

	poll     *time.Ticker
	deadline *time.Timer
}

func (s *session) stopTimers() {
	if s.poll != nil {
		s.poll.Stop()
	}
	if s.deadline != nil {
		s.deadline.Stop()
	}
}

func (s *session) transcript() string {
	return strings.Join(s.finals, " ")
}

// Orchestrator is the Idle -> Listening -> Recognizing state machine. All
// transitions happen on the goroutine running Run; everything else posts
// events to it.
type Orchestrator struct {
	listener  transcriber.Listener
	corrector Corrector
	store     Store
	injector  injection.Injector
	presenter notify.Presenter
	metrics   *observe.Metrics

	events chan event

	mu      sync.RWMutex
	config  Config
	state   notify.State
	preview string

	// owned by the Run goroutine
	current *session
	nextID  uint64
	wg      sync.WaitGroup
}

func New(config Config, listener transcriber.Listener, corrector Corrector, store Store,
	injector injection.Injector, presenter notify.Presenter, metrics *observe.Metrics) *Orchestrator {
	if presenter == nil {
		presenter = notify.Nop{}
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		listener:  listener,
		corrector: corrector,
		store:     store,
		injector:  injector,
		presenter: presenter,
		metrics:   metrics,
		events:    make(chan event, 64),
		config:    config,
	}
}

// SetConfig applies to the next session.
func (o *Orchestrator) SetConfig(config Config) {
	o.mu.Lock()
	o.config = config
	o.mu.Unlock()
}

func (o *Orchestrator) getConfig() Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config
}

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Status{
		State:       o.state,
		Preview:     o.preview,
		ModelLoaded: o.listener.IsModelLoaded(),
		User:        o.config.User,
	}
}

func (o *Orchestrator) Preview() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.preview
}

// HotkeyPressed and HotkeyReleased inject edges from outside the global
// hook, e.g. from the control socket.
func (o *Orchestrator) HotkeyPressed()  { o.trySend(event{kind: evPressed}) }
func (o *Orchestrator) HotkeyReleased() { o.trySend(event{kind: evReleased}) }

func (o *Orchestrator) trySend(e event) {
	select {
	case o.events <- e:
	default:
		log.Printf("Orchestrator: event queue full, dropping event %d", e.kind)
	}
}

func (o *Orchestrator) post(ctx context.Context, e event) {
	select {
	case o.events <- e:
	case <-ctx.Done():
	}
}

// Run processes hotkey edges and recognition results until ctx is done.
// hotkeys may be nil when the global hook is unavailable.
//
// After a release the session waits for the listener's result stream to
// close, even when the transcript already has text, so a late final is never
// cut off. The wait is bounded by the session's trailing timeout.
func (o *Orchestrator) Run(ctx context.Context, hotkeys <-chan hotkey.Event) error {
	defer o.wg.Wait()

	for {
		var pollC, deadlineC <-chan time.Time
		if s := o.current; s != nil && s.poll != nil {
			pollC = s.poll.C
			deadlineC = s.deadline.C
		}

		select {
		case <-ctx.Done():
			o.shutdown()
			return nil

		case ev, ok := <-hotkeys:
			if !ok {
				hotkeys = nil
				continue
			}
			switch ev.Type {
			case hotkey.Pressed:
				o.onPressed(ctx)
			case hotkey.Released:
				o.onReleased(ctx)
			}

		case e := <-o.events:
			o.handle(ctx, e)

		case <-pollC:
			// The stream is closed once the listener delivered its last final.
			if s := o.current; s.closed {
				o.finish(ctx, s)
			}

		case <-deadlineC:
			log.Printf("Orchestrator: no trailing result after %v", o.getConfig().TrailingTimeout)
			o.finish(ctx, o.current)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, e event) {
	switch e.kind {
	case evPressed:
		o.onPressed(ctx)
		return
	case evReleased:
		o.onReleased(ctx)
		return
	}

	s := o.current
	if s == nil || s.id != e.session {
		return
	}

	switch e.kind {
	case evResult:
		if s.done {
			return
		}
		o.onResult(ctx, s, e.result)
	case evClosed:
		s.closed = true
	case evStopped:
		if e.err != nil {
			log.Printf("Orchestrator: stop listening: %v", e.err)
		}
	case evProcessed:
		if e.outcome == observe.OutcomeNoSpeech {
			o.presenter.Notify(notify.MsgNoSpeech)
		}
		o.metrics.SessionFinished(ctx, e.outcome, s.finalize, time.Since(s.started))
		o.end()
	}
}

func (o *Orchestrator) onPressed(ctx context.Context) {
	if state := o.getState(); state != notify.Idle {
		log.Printf("Orchestrator: hotkey pressed while %s, ignoring", state)
		return
	}
	if !o.listener.IsModelLoaded() {
		o.presenter.Notify(notify.MsgModelLoading)
		return
	}

	o.injector.CaptureTarget(ctx)

	sctx, cancel := context.WithCancel(ctx)
	results, err := o.listener.StartListening(sctx)
	if err != nil {
		cancel()
		log.Printf("Orchestrator: failed to start listening: %v", err)
		o.presenter.Error(fmt.Sprintf("Failed to start listening: %v", err))
		return
	}

	o.nextID++
	s := &session{id: o.nextID, cancel: cancel, started: time.Now()}
	o.current = s
	o.metrics.SessionStarted(ctx)
	o.setState(notify.Listening)
	o.setPreview("")

	o.wg.Add(1)
	go o.forward(ctx, s.id, results)
}

// forward moves results onto the event loop so they are ordered with
// hotkey edges.
func (o *Orchestrator) forward(ctx context.Context, id uint64, results <-chan transcriber.Result) {
	defer o.wg.Done()
	for {
		select {
		case r, ok := <-results:
			if !ok {
				o.post(ctx, event{kind: evClosed, session: id})
				return
			}
			o.post(ctx, event{kind: evResult, session: id, result: r})
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) onReleased(ctx context.Context) {
	s := o.current
	if s == nil || o.getState() != notify.Listening {
		return
	}

	cfg := o.getConfig()
	s.released = time.Now()
	s.poll = time.NewTicker(cfg.TrailingPoll)
	s.deadline = time.NewTimer(cfg.TrailingTimeout)
	o.setState(notify.Recognizing)

	o.wg.Add(1)
	go func(id uint64) {
		defer o.wg.Done()
		stopCtx, cancel := context.WithTimeout(ctx, cfg.StopGrace)
		defer cancel()
		err := o.listener.StopListening(stopCtx)
		o.post(ctx, event{kind: evStopped, session: id, err: err})
	}(s.id)
}

func (o *Orchestrator) onResult(ctx context.Context, s *session, r transcriber.Result) {
	if r.Err != nil {
		log.Printf("Orchestrator: session %d failed: %v", s.id, r.Err)
		o.presenter.Error(fmt.Sprintf("Dictation failed: %v", r.Err))
		o.abort(ctx, s)
		return
	}

	if !r.IsFinal {
		o.setPreview(joinNonEmpty(s.transcript(), r.Text))
		return
	}

	if text := strings.TrimSpace(r.Text); text != "" && !r.NoSpeech {
		s.finals = append(s.finals, text)
	}
	o.setPreview(s.transcript())
}

// abort ends the session without delivering anything.
func (o *Orchestrator) abort(ctx context.Context, s *session) {
	s.done = true
	s.stopTimers()
	if o.getState() == notify.Listening {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			stopCtx, cancel := context.WithTimeout(ctx, o.getConfig().StopGrace)
			defer cancel()
			if err := o.listener.StopListening(stopCtx); err != nil {
				log.Printf("Orchestrator: stop after failure: %v", err)
			}
		}()
	}
	s.cancel()
	o.metrics.SessionFinished(ctx, observe.OutcomeAborted, 0, 0)
	o.end()
}

// finish resolves the Recognizing state either into processing or into a
// no-speech verdict.
func (o *Orchestrator) finish(ctx context.Context, s *session) {
	if s == nil || s.done {
		return
	}
	s.done = true
	s.stopTimers()
	s.finalize = time.Since(s.released)
	s.cancel()

	text := s.transcript()
	if text == "" {
		log.Printf("Orchestrator: session %d produced no speech", s.id)
		o.presenter.Notify(notify.MsgNoSpeech)
		o.metrics.SessionFinished(ctx, observe.OutcomeNoSpeech, s.finalize, 0)
		o.end()
		return
	}

	user := o.getConfig().User
	o.wg.Add(1)
	go func(id uint64, started time.Time) {
		defer o.wg.Done()
		outcome := o.process(ctx, user, text, started)
		o.post(ctx, event{kind: evProcessed, session: id, outcome: outcome})
	}(s.id, s.started)
}

// process runs correction, formatting, injection and persistence. None of
// these failures reach the user.
func (o *Orchestrator) process(ctx context.Context, user, text string, started time.Time) string {
	corrected := o.corrector.Correct(ctx, user, text)
	if corrected != text {
		o.metrics.RecordCorrection(ctx)
	}

	st := style.ParseStyle(string(o.getConfig().DefaultStyle))
	if pref, err := o.store.GetUserStylePreference(ctx, user); err != nil {
		log.Printf("Orchestrator: failed to read style preference: %v", err)
	} else if pref != "" {
		st = style.ParseStyle(pref)
	}

	final := style.Format(corrected, st, o.corrector.Words(ctx, user)...)
	if final == "" {
		return observe.OutcomeNoSpeech
	}

	if err := o.injector.Inject(ctx, final); err != nil {
		log.Printf("Orchestrator: injection incomplete, text left on clipboard: %v", err)
		o.metrics.RecordInjectionFailure(ctx)
	}

	if _, err := o.store.SaveSpeech(ctx, user, final, time.Since(started)); err != nil {
		log.Printf("Orchestrator: failed to save history: %v", err)
	}

	log.Printf("Orchestrator: delivered %d characters", len(final))
	return observe.OutcomeInjected
}

func (o *Orchestrator) end() {
	o.current = nil
	o.setPreview("")
	o.setState(notify.Idle)
}

func (o *Orchestrator) shutdown() {
	s := o.current
	if s == nil {
		return
	}
	s.stopTimers()
	if !s.done && o.getState() == notify.Listening {
		stopCtx, cancel := context.WithTimeout(context.Background(), o.getConfig().StopGrace)
		if err := o.listener.StopListening(stopCtx); err != nil {
			log.Printf("Orchestrator: stop on shutdown: %v", err)
		}
		cancel()
	}
	s.cancel()
	o.current = nil
}

func (o *Orchestrator) getState() notify.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s notify.State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.presenter.SetState(s)
}

func (o *Orchestrator) setPreview(text string) {
	o.mu.Lock()
	changed := o.preview != text
	o.preview = text
	o.mu.Unlock()
	if changed {
		o.presenter.SetRecognizedText(text)
	}
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
