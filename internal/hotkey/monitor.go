package hotkey

import (
	"errors"
	"time"
)

// ErrMonitorUnavailable is returned when the global keyboard listener cannot
// be installed (no X server, Wayland without XWayland focus, missing permissions).
var ErrMonitorUnavailable = errors.New("hotkey: global input monitor unavailable")

// KeyEvent is a single physical key transition.
type KeyEvent struct {
	Code Key
	Down bool
	When time.Time
}

// GlobalInputMonitor delivers system-wide key transitions and answers live
// key-state queries. Implementations must keep IsDown coherent with the
// events already delivered on the channel.
type GlobalInputMonitor interface {
	Start() (<-chan KeyEvent, error)
	IsDown(k Key) bool
	Stop()
}
