package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const defaultConfirmDelay = 10 * time.Millisecond

type EventType int

const (
	Pressed EventType = iota + 1
	Released
)

func (t EventType) String() string {
	switch t {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	}
	return "unknown"
}

// Event is an edge of the configured combination.
type Event struct {
	Type EventType
	At   time.Time
}

type State int

const (
	StateReleased State = iota
	StatePressed
)

// Option configures a Detector.
type Option func(*Detector)

// WithConfirmDelay sets how long after a key-down the live key state is
// re-sampled before Pressed fires.
func WithConfirmDelay(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.confirmDelay = d
		}
	}
}

// Detector turns raw key transitions into edge-triggered Pressed/Released
// events. Pressed fires at most once per hold and Released at most once per
// release, regardless of key repeat.
type Detector struct {
	monitor      GlobalInputMonitor
	confirmDelay time.Duration
	after        func(time.Duration, func())
	events       chan Event
	available    atomic.Bool

	mu         sync.Mutex
	cfg        Configuration
	pending    *Configuration
	state      State
	confirming bool
	epoch      uint64
}

func NewDetector(monitor GlobalInputMonitor, cfg Configuration, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		monitor:      monitor,
		confirmDelay: defaultConfirmDelay,
		after: func(delay time.Duration, f func()) {
			time.AfterFunc(delay, f)
		},
		events: make(chan Event, 8),
		cfg:    cfg,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Events returns the edge channel. It is never closed.
func (d *Detector) Events() <-chan Event {
	return d.events
}

// Available reports whether the global listener was installed.
func (d *Detector) Available() bool {
	return d.available.Load()
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Detector) Configuration() Configuration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Reconfigure replaces the combination. While a press episode is active the
// change is deferred until the combination is released.
func (d *Detector) Reconfigure(cfg Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePressed {
		d.pending = &cfg
		return nil
	}
	d.cfg = cfg
	d.epoch++
	d.confirming = false
	log.Printf("Hotkey: combination set to %s", cfg)
	return nil
}

// Run installs the global listener and processes key transitions until ctx
// is done. An ErrMonitorUnavailable error means the hotkey capability is
// missing; callers treat it as a configuration problem.
func (d *Detector) Run(ctx context.Context) error {
	ch, err := d.monitor.Start()
	if err != nil {
		d.available.Store(false)
		if errors.Is(err, ErrMonitorUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMonitorUnavailable, err)
	}
	d.available.Store(true)
	defer func() {
		d.available.Store(false)
		d.monitor.Stop()
	}()

	log.Printf("Hotkey: listening for %s", d.Configuration())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			d.handle(ev)
		}
	}
}

func (d *Detector) handle(ev KeyEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateReleased:
		if !ev.Down || d.confirming || !d.cfg.relevant(ev.Code) {
			return
		}
		d.confirming = true
		epoch := d.epoch
		d.after(d.confirmDelay, func() { d.confirm(epoch) })

	case StatePressed:
		if (!ev.Down && d.cfg.required(ev.Code)) || !d.matchLocked() {
			d.state = StateReleased
			d.emitLocked(Released)
			if d.pending != nil {
				d.cfg = *d.pending
				d.pending = nil
				d.epoch++
				log.Printf("Hotkey: combination set to %s", d.cfg)
			}
		}
	}
}

// confirm re-samples the live key state once the confirmation delay elapsed.
func (d *Detector) confirm(epoch uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if epoch != d.epoch {
		return
	}
	d.confirming = false
	if d.state != StateReleased {
		return
	}
	if d.matchLocked() {
		d.state = StatePressed
		d.emitLocked(Pressed)
	}
}

func (d *Detector) matchLocked() bool {
	if !d.modifiersMatchLocked() {
		return false
	}
	return !d.cfg.HasKey || d.monitor.IsDown(d.cfg.Key)
}

func (d *Detector) modifiersMatchLocked() bool {
	down := func(pair [2]Key) bool {
		return d.monitor.IsDown(pair[0]) || d.monitor.IsDown(pair[1])
	}
	return (!d.cfg.Ctrl || down(ctrlKeys)) &&
		(!d.cfg.Alt || down(altKeys)) &&
		(!d.cfg.Shift || down(shiftKeys)) &&
		(!d.cfg.Win || down(winKeys))
}

func (d *Detector) emitLocked(t EventType) {
	select {
	case d.events <- Event{Type: t, At: time.Now()}:
	default:
		log.Printf("Hotkey: event channel full, dropped %s", t)
	}
}
