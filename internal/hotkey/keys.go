package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is a virtual key code as reported by libuiohook.
type Key uint16

// Modifier key codes. Each modifier has a physical left and right variant.
const (
	KeyLeftCtrl   Key = 0x001D
	KeyRightCtrl  Key = 0x0E1D
	KeyLeftAlt    Key = 0x0038
	KeyRightAlt   Key = 0x0E38
	KeyLeftShift  Key = 0x002A
	KeyRightShift Key = 0x0036
	KeyLeftWin    Key = 0x0E5B
	KeyRightWin   Key = 0x0E5C
)

var (
	ctrlKeys  = [2]Key{KeyLeftCtrl, KeyRightCtrl}
	altKeys   = [2]Key{KeyLeftAlt, KeyRightAlt}
	shiftKeys = [2]Key{KeyLeftShift, KeyRightShift}
	winKeys   = [2]Key{KeyLeftWin, KeyRightWin}
)

// IsModifier reports whether k is one of the eight physical modifier keys.
func IsModifier(k Key) bool {
	switch k {
	case KeyLeftCtrl, KeyRightCtrl,
		KeyLeftAlt, KeyRightAlt,
		KeyLeftShift, KeyRightShift,
		KeyLeftWin, KeyRightWin:
		return true
	}
	return false
}

// named non-modifier keys accepted in combo strings
var keyNames = map[string]Key{
	"space": 0x0039, "enter": 0x001C, "tab": 0x000F, "escape": 0x0001, "backspace": 0x000E,
	"f1": 0x003B, "f2": 0x003C, "f3": 0x003D, "f4": 0x003E, "f5": 0x003F, "f6": 0x0040,
	"f7": 0x0041, "f8": 0x0042, "f9": 0x0043, "f10": 0x0044, "f11": 0x0057, "f12": 0x0058,
	"a": 0x001E, "b": 0x0030, "c": 0x002E, "d": 0x0020, "e": 0x0012, "f": 0x0021,
	"g": 0x0022, "h": 0x0023, "i": 0x0017, "j": 0x0024, "k": 0x0025, "l": 0x0026,
	"m": 0x0032, "n": 0x0031, "o": 0x0018, "p": 0x0019, "q": 0x0010, "r": 0x0013,
	"s": 0x001F, "t": 0x0014, "u": 0x0016, "v": 0x002F, "w": 0x0011, "x": 0x002D,
	"y": 0x0015, "z": 0x002C,
	"0": 0x000B, "1": 0x0002, "2": 0x0003, "3": 0x0004, "4": 0x0005,
	"5": 0x0006, "6": 0x0007, "7": 0x0008, "8": 0x0009, "9": 0x000A,
}

// ParseKey resolves a key name ("space", "f9", "d") or a numeric code
// ("0x0039", "57").
func ParseKey(name string) (Key, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if k, ok := keyNames[name]; ok {
		return k, nil
	}
	v, err := strconv.ParseUint(name, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	k := Key(v)
	if IsModifier(k) {
		return 0, fmt.Errorf("key %q is a modifier", name)
	}
	return k, nil
}

func (k Key) String() string {
	for name, code := range keyNames {
		if code == k {
			return name
		}
	}
	return fmt.Sprintf("0x%04X", uint16(k))
}
