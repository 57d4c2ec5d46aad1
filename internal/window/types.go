package window

import (
	"errors"
	"fmt"
	"time"
)

// Handle is an opaque identifier for one top-level window, stable for
// the window's lifetime. Zero is never a valid window.
type Handle uint64

// PID is an operating system process identifier
type PID int

// ErrNoWindow is returned by Controller operations on a handle that no
// longer names a window
var ErrNoWindow = errors.New("no such window")

// Kind classifies a raw notification delivered by a NotificationSource
type Kind int

const (
	KindUnknown Kind = iota
	KindCreated
	KindDestroyed
	KindActivated
	KindActivatedOther // activation of a window that was not responding ("rude" activation)
	KindRedraw         // taskbar entry redrawn, title possibly changed
	KindFlashed
	KindShown // window appeared without a focus change; registers only
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindDestroyed:
		return "destroyed"
	case KindActivated:
		return "activated"
	case KindActivatedOther:
		return "activated-other"
	case KindRedraw:
		return "redraw"
	case KindFlashed:
		return "flashed"
	case KindShown:
		return "shown"
	default:
		return "unknown"
	}
}

// Notification is one entry of the raw notification stream.
// Code carries the platform value for diagnostics; it is the only
// meaningful field besides Handle when Kind is KindUnknown.
type Notification struct {
	Kind   Kind
	Handle Handle
	Code   uint32
}

func (n Notification) String() string {
	if n.Kind == KindUnknown {
		return fmt.Sprintf("unknown(0x%04X) hwnd=%d", n.Code, n.Handle)
	}
	return fmt.Sprintf("%s hwnd=%d", n.Kind, n.Handle)
}

// Windows shell-hook codes (wParam of the SHELLHOOK message)
const (
	ShellHookWindowCreated    = 1
	ShellHookWindowDestroyed  = 2
	ShellHookWindowActivated  = 4
	ShellHookRedraw           = 6
	ShellHookRudeAppActivated = 0x8004
	ShellHookFlash            = 0x8006
)

// ShellHookKind classifies a Windows shell-hook code. The numeric values
// are not portable; other backends build notifications with a Kind directly.
func ShellHookKind(code uint32) Kind {
	switch code {
	case ShellHookWindowCreated:
		return KindCreated
	case ShellHookWindowDestroyed:
		return KindDestroyed
	case ShellHookWindowActivated:
		return KindActivated
	case ShellHookRudeAppActivated:
		return KindActivatedOther
	case ShellHookRedraw:
		return KindRedraw
	case ShellHookFlash:
		return KindFlashed
	default:
		return KindUnknown
	}
}

// Point is a screen position
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a window extent
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a window frame: position plus size
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position returns the top-left corner
func (r Rect) Position() Point { return Point{X: r.X, Y: r.Y} }

// Size returns the extent
func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }

// RectFrom combines a size and a position
func RectFrom(size Size, pos Point) Rect {
	return Rect{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}
}

// ShowOptions controls Show
type ShowOptions struct {
	// Activate gives the window focus after showing it
	Activate bool `json:"activate"`
	// Default restores the window's default placement
	Default bool `json:"default"`
}

// FlashMode selects how long a flash lasts
type FlashMode int

const (
	FlashOnce        FlashMode = iota // Count flashes, then stop
	FlashUntilActive                  // until the window is activated
	FlashContinuous                   // until a stop flash is issued
)

// FlashOptions controls Flash. With neither Caption nor Tray set the
// request stops any flashing in progress.
type FlashOptions struct {
	Caption  bool          `json:"caption"`
	Tray     bool          `json:"tray"`
	Mode     FlashMode     `json:"mode"`
	Count    int           `json:"count"`
	Interval time.Duration `json:"interval"`
}

// Stop reports whether the options describe a stop request
func (o FlashOptions) Stop() bool {
	return !o.Caption && !o.Tray
}

// Duration is how long a FlashOnce request keeps the window flashing
func (o FlashOptions) Duration() time.Duration {
	count, interval := o.Count, o.Interval
	if count <= 0 {
		count = 10
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return time.Duration(count) * interval
}

// Message is a raw client message, the escape hatch of the command surface
type Message struct {
	Type string    `json:"type"`
	Data [5]uint32 `json:"data"`
}
