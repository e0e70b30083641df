package notify

import (
	"fmt"
	"log"
	"os/exec"
	"sync"
)

// State is the overlay state. Exactly one is active at a time and only the
// orchestrator changes it.
type State int

const (
	Idle State = iota
	Listening
	Recognizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Recognizing:
		return "recognizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	MsgModelLoading      = "Speech model is still loading, try again in a moment"
	MsgNoSpeech          = "No speech detected"
	MsgHotkeyUnavailable = "Global hotkey unavailable, bind `holdtype press` / `holdtype release` in your compositor"
)

// Presenter receives everything the user should see.
type Presenter interface {
	SetState(s State)
	// SetRecognizedText shows the live preview; "" clears it.
	SetRecognizedText(preview string)
	Notify(msg string)
	Error(msg string)
}

// New returns the presenter for a notifications type from the config.
func New(kind string) Presenter {
	switch kind {
	case "desktop":
		return &Desktop{}
	case "log":
		return Log{}
	case "none":
		return Nop{}
	default:
		log.Printf("Notify: unknown notification type %q, using log", kind)
		return Log{}
	}
}

// Desktop shows state changes and notices through notify-send.
type Desktop struct {
	// run executes the notify-send command; nil means exec.
	run func(args ...string) error
}

func (d *Desktop) send(args ...string) {
	run := d.run
	if run == nil {
		run = func(args ...string) error {
			return exec.Command("notify-send", args...).Run()
		}
	}
	if err := run(args...); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (d *Desktop) SetState(s State) {
	switch s {
	case Listening:
		d.send("-a", "holdtype", "-t", "1500", "holdtype: Listening")
	case Recognizing:
		d.send("-a", "holdtype", "-t", "1500", "holdtype: Recognizing")
	}
}

// SetRecognizedText is a no-op; notify-send cannot live-update a preview.
func (d *Desktop) SetRecognizedText(string) {}

func (d *Desktop) Notify(msg string) {
	d.send("-a", "holdtype", "holdtype", msg)
}

func (d *Desktop) Error(msg string) {
	d.send("-a", "holdtype", "-u", "critical", "holdtype", msg)
}

// Log writes everything to the standard logger.
type Log struct{}

func (Log) SetState(s State)              { log.Printf("holdtype: %s", s) }
func (Log) SetRecognizedText(text string) {}
func (Log) Notify(msg string)             { log.Printf("holdtype: %s", msg) }
func (Log) Error(msg string)              { log.Printf("holdtype: ERROR: %s", msg) }

// Nop is a Presenter that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) SetState(State)           {}
func (Nop) SetRecognizedText(string) {}
func (Nop) Notify(string)            {}
func (Nop) Error(string)             {}

// Multi fans every call out to all presenters in order.
type Multi []Presenter

func (m Multi) SetState(s State) {
	for _, p := range m {
		p.SetState(s)
	}
}

func (m Multi) SetRecognizedText(text string) {
	for _, p := range m {
		p.SetRecognizedText(text)
	}
}

func (m Multi) Notify(msg string) {
	for _, p := range m {
		p.Notify(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, p := range m {
		p.Error(msg)
	}
}

// Tracker remembers the latest state, preview and notice so the control
// socket can report them.
type Tracker struct {
	mu      sync.RWMutex
	state   State
	preview string
	notice  string
}

type Snapshot struct {
	State   State
	Preview string
	Notice  string
}

func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Tracker) SetRecognizedText(text string) {
	t.mu.Lock()
	t.preview = text
	t.mu.Unlock()
}

func (t *Tracker) Notify(msg string) {
	t.mu.Lock()
	t.notice = msg
	t.mu.Unlock()
}

func (t *Tracker) Error(msg string) { t.Notify(msg) }

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{State: t.state, Preview: t.preview, Notice: t.notice}
}
