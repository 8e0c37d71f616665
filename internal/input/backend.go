// Package input provides the keyboard backend the typing engine drives.
package input

import "errors"

// ErrUnsupportedPlatform is returned by backends that cannot run on this OS
var ErrUnsupportedPlatform = errors.New("input injection not supported on this platform")

// Layout identifies an OS keyboard layout (Windows KLID, e.g. "00000409")
type Layout string

const (
	LayoutEnglish Layout = "00000409"
	LayoutRussian Layout = "00000419"
)

// Modifier is a key held down while another key is pressed
type Modifier int

const (
	ModShift Modifier = iota
	ModCtrl
	ModAlt
)

func (m Modifier) String() string {
	switch m {
	case ModShift:
		return "shift"
	case ModCtrl:
		return "ctrl"
	case ModAlt:
		return "alt"
	default:
		return "unknown"
	}
}

// Backend emits keystrokes and manages the keyboard layout. All calls are
// synchronous; failures are reported as errors.
type Backend interface {
	CurrentLayout() (Layout, error)
	SwitchLayout(layout Layout) error
	TypeChar(r rune) error
	TypeModified(mod Modifier, key rune) error
	TypeBackspace() error
	TypeLineBreak() error
}
