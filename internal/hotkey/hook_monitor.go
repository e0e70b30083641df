package hotkey

import (
	"fmt"
	"log"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

const hookStartTimeout = 2 * time.Second

// HookMonitor is a GlobalInputMonitor backed by libuiohook through gohook.
// It tracks the set of physically held keys from the press/release stream;
// key-typed events are ignored.
type HookMonitor struct {
	mu      sync.RWMutex
	down    map[Key]bool
	done    chan struct{}
	stopped sync.Once
}

func NewHookMonitor() *HookMonitor {
	return &HookMonitor{
		down: make(map[Key]bool),
		done: make(chan struct{}),
	}
}

func (m *HookMonitor) Start() (<-chan KeyEvent, error) {
	raw := hook.Start()

	// libuiohook reports HookEnabled once the listener is installed.
	select {
	case ev, ok := <-raw:
		if !ok || ev.Kind != hook.HookEnabled {
			hook.End()
			return nil, fmt.Errorf("%w: hook did not report enabled", ErrMonitorUnavailable)
		}
	case <-time.After(hookStartTimeout):
		hook.End()
		return nil, fmt.Errorf("%w: timed out installing hook", ErrMonitorUnavailable)
	}

	out := make(chan KeyEvent, 64)
	go m.forward(raw, out)
	return out, nil
}

func (m *HookMonitor) forward(raw chan hook.Event, out chan<- KeyEvent) {
	defer close(out)
	dropped := 0
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-raw:
			if !ok {
				return
			}
			var down bool
			switch ev.Kind {
			case hook.KeyHold:
				down = true
			case hook.KeyUp:
				down = false
			case hook.HookDisabled:
				return
			default:
				continue
			}

			k := Key(ev.Keycode)
			m.mu.Lock()
			if down {
				m.down[k] = true
			} else {
				delete(m.down, k)
			}
			m.mu.Unlock()

			select {
			case out <- KeyEvent{Code: k, Down: down, When: ev.When}:
			default:
				// live state is already updated, the detector re-samples it
				dropped++
				if dropped%50 == 1 {
					log.Printf("Hotkey: dropped %d key events due to backpressure", dropped)
				}
			}
		}
	}
}

func (m *HookMonitor) IsDown(k Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.down[k]
}

func (m *HookMonitor) Stop() {
	m.stopped.Do(func() {
		close(m.done)
		hook.End()
	})
}
