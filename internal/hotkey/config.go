package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration is the set of keys that must be held at the same time.
// When HasKey is false the combination is satisfied by modifiers alone,
// which allows chords such as Ctrl+Win.
type Configuration struct {
	Ctrl   bool
	Alt    bool
	Shift  bool
	Win    bool
	Key    Key
	HasKey bool
}

// DefaultConfiguration is Ctrl+Win.
func DefaultConfiguration() Configuration {
	return Configuration{Ctrl: true, Win: true}
}

var ErrEmptyCombination = errors.New("hotkey: combination requires at least one key")

func (c Configuration) Validate() error {
	if !c.Ctrl && !c.Alt && !c.Shift && !c.Win && !c.HasKey {
		return ErrEmptyCombination
	}
	if c.HasKey && IsModifier(c.Key) {
		return fmt.Errorf("hotkey: key %s is a modifier, use the modifier flags instead", c.Key)
	}
	return nil
}

// ParseCombo parses strings such as "ctrl+win", "ctrl+shift+space" or "alt+f9".
func ParseCombo(s string) (Configuration, error) {
	var c Configuration
	s = strings.TrimSpace(s)
	if s == "" {
		return c, ErrEmptyCombination
	}
	for _, part := range strings.Split(s, "+") {
		switch p := strings.ToLower(strings.TrimSpace(part)); p {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "win", "super", "meta", "cmd":
			c.Win = true
		default:
			if c.HasKey {
				return Configuration{}, fmt.Errorf("hotkey: more than one non-modifier key in %q", s)
			}
			k, err := ParseKey(p)
			if err != nil {
				return Configuration{}, fmt.Errorf("hotkey: %w", err)
			}
			c.Key = k
			c.HasKey = true
		}
	}
	return c, c.Validate()
}

func (c Configuration) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Win {
		parts = append(parts, "win")
	}
	if c.HasKey {
		parts = append(parts, c.Key.String())
	}
	return strings.Join(parts, "+")
}

// relevant reports whether k takes part in this combination.
func (c Configuration) relevant(k Key) bool {
	if c.HasKey && k == c.Key {
		return true
	}
	return IsModifier(k)
}

// required reports whether releasing k must end the press episode.
func (c Configuration) required(k Key) bool {
	switch k {
	case KeyLeftCtrl, KeyRightCtrl:
		return c.Ctrl
	case KeyLeftAlt, KeyRightAlt:
		return c.Alt
	case KeyLeftShift, KeyRightShift:
		return c.Shift
	case KeyLeftWin, KeyRightWin:
		return c.Win
	}
	return c.HasKey && k == c.Key
}
