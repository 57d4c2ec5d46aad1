package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

var (
	// ErrWindowNotFound is returned for a handle that no longer names a window
	ErrWindowNotFound = errors.New("window not found")

	// ErrInvalidHandle is returned for the zero handle
	ErrInvalidHandle = errors.New("invalid window handle")

	// ErrConflictingEffects is returned by Animate when both slide and blend are requested
	ErrConflictingEffects = errors.New("slide and blend effects are mutually exclusive")

	// ErrInvalidArgument is returned for an option value outside its set
	ErrInvalidArgument = errors.New("invalid argument")
)

// Backend is what a Window needs from the display backend
type Backend interface {
	window.SnapshotProvider
	window.Controller
}

// Window operates on one live window. Title and Class go through a
// tracker.WindowEntry, so a window that disappears keeps reporting its
// last known values.
type Window struct {
	backend Backend
	entry   *tracker.WindowEntry
	sleep   func(time.Duration)
}

// New wraps an arbitrary window, tracked or not
func New(b Backend, h window.Handle) (*Window, error) {
	return Resolve(b, h, nil)
}

// Resolve is New with the owning process named by names
func Resolve(b Backend, h window.Handle, names tracker.NameResolver) (*Window, error) {
	if h == 0 {
		return nil, ErrInvalidHandle
	}
	if !b.IsAlive(h) {
		return nil, fmt.Errorf("%w: %d", ErrWindowNotFound, h)
	}
	pid := b.OwningProcessID(h)
	name := ""
	if names != nil {
		name = names.ProcessName(pid)
	}
	return FromEntry(b, tracker.NewWindowEntry(b, h, pid, name))
}

// FromEntry wraps a window tracked by the Reconciler, sharing its cache
func FromEntry(b Backend, entry *tracker.WindowEntry) (*Window, error) {
	if entry == nil || entry.Handle() == 0 {
		return nil, ErrInvalidHandle
	}
	return &Window{backend: b, entry: entry, sleep: time.Sleep}, nil
}

// Handle returns the window handle
func (w *Window) Handle() window.Handle { return w.entry.Handle() }

// Entry returns the cache-backed window entry
func (w *Window) Entry() *tracker.WindowEntry { return w.entry }

// Title returns the live title, or the last known one
func (w *Window) Title() string { return w.entry.Title() }

// Class returns the live window class, or the last known one
func (w *Window) Class() string { return w.entry.Class() }

// Info returns the payload form of the window
func (w *Window) Info() tracker.WindowInfo { return w.entry.Info() }

func (w *Window) String() string { return w.entry.String() }

// IsAlive reports whether the window still exists
func (w *Window) IsAlive() bool { return w.backend.IsAlive(w.Handle()) }

// IsActive reports whether the window is the active window
func (w *Window) IsActive() bool { return w.backend.IsActive(w.Handle()) }

// IsVisible reports whether the window is shown
func (w *Window) IsVisible() bool { return w.backend.IsVisible(w.Handle()) }

// IsEnabled reports whether the window accepts input
func (w *Window) IsEnabled() bool { return w.backend.IsEnabled(w.Handle()) }

// HasFocus reports whether the window has the keyboard focus
func (w *Window) HasFocus() bool { return w.backend.HasFocus(w.Handle()) }

// Rect returns the window frame
func (w *Window) Rect() (window.Rect, error) {
	r, err := w.backend.Rect(w.Handle())
	if err != nil {
		return window.Rect{}, w.wrap("rect", err)
	}
	return r, nil
}

// Position returns the top-left corner of the frame
func (w *Window) Position() (window.Point, error) {
	r, err := w.Rect()
	return r.Position(), err
}

// Size returns the frame extent
func (w *Window) Size() (window.Size, error) {
	r, err := w.Rect()
	return r.Size(), err
}

// SetPosition moves the window
func (w *Window) SetPosition(p window.Point) (*Window, error) {
	return w.do("set position", func(h window.Handle) error {
		return w.backend.SetPosition(h, p)
	})
}

// SetSize resizes the window
func (w *Window) SetSize(s window.Size) (*Window, error) {
	return w.do("set size", func(h window.Handle) error {
		return w.backend.SetSize(h, s)
	})
}

// SetRect moves and resizes the window
func (w *Window) SetRect(r window.Rect) (*Window, error) {
	return w.do("set rect", func(h window.Handle) error {
		if err := w.backend.SetPosition(h, r.Position()); err != nil {
			return err
		}
		return w.backend.SetSize(h, r.Size())
	})
}

// SetBounds is SetRect with separate size and position
func (w *Window) SetBounds(s window.Size, p window.Point) (*Window, error) {
	return w.SetRect(window.RectFrom(s, p))
}

// Show shows the window
func (w *Window) Show(opts window.ShowOptions) (*Window, error) {
	return w.do("show", func(h window.Handle) error {
		return w.backend.Show(h, opts)
	})
}

// Hide hides the window
func (w *Window) Hide() (*Window, error) {
	return w.do("hide", w.backend.Hide)
}

// Restore un-minimizes the window, optionally to its default placement
func (w *Window) Restore(defaultPlacement bool) (*Window, error) {
	return w.do("restore", func(h window.Handle) error {
		return w.backend.Restore(h, defaultPlacement)
	})
}

// Minimize minimizes the window
func (w *Window) Minimize(activate, force bool) (*Window, error) {
	return w.do("minimize", func(h window.Handle) error {
		return w.backend.Minimize(h, activate, force)
	})
}

// Maximize maximizes the window
func (w *Window) Maximize() (*Window, error) {
	return w.do("maximize", w.backend.Maximize)
}

// Flash draws attention to the window. Options with neither Caption nor
// Tray stop a flash in progress, including a FlashContinuous one.
func (w *Window) Flash(opts window.FlashOptions) (*Window, error) {
	return w.do("flash", func(h window.Handle) error {
		return w.backend.Flash(h, opts)
	})
}

// StopFlash cancels any flash in progress
func (w *Window) StopFlash() (*Window, error) {
	return w.Flash(window.FlashOptions{})
}

// SendKeys types text into the window
func (w *Window) SendKeys(text string) (*Window, error) {
	return w.do("send keys", func(h window.Handle) error {
		return w.backend.SendKeys(h, text)
	})
}

// EnableInput enables or disables keyboard and mouse input
func (w *Window) EnableInput(enable bool) (*Window, error) {
	return w.do("enable input", func(h window.Handle) error {
		return w.backend.EnableInput(h, enable)
	})
}

// BringToTop raises the window above its siblings
func (w *Window) BringToTop() (*Window, error) {
	return w.do("bring to top", w.backend.BringToTop)
}

// Focus gives the window the keyboard focus
func (w *Window) Focus() (*Window, error) {
	return w.do("focus", w.backend.Focus)
}

// Parent returns the owner or parent window, nil for a top-level window
func (w *Window) Parent() (*Window, error) {
	parent, err := w.backend.Parent(w.Handle())
	if err != nil {
		return nil, w.wrap("parent", err)
	}
	if parent == 0 {
		return nil, nil
	}
	p, err := New(w.backend, parent)
	if err != nil {
		return nil, err
	}
	p.sleep = w.sleep
	return p, nil
}

// Close asks the window to close; the application may refuse
func (w *Window) Close() (*Window, error) {
	return w.do("close", w.backend.CloseWindow)
}

// Destroy forcibly destroys the window
func (w *Window) Destroy() (*Window, error) {
	return w.do("destroy", w.backend.DestroyWindow)
}

// SendMessage delivers a raw message and waits for it to be accepted
func (w *Window) SendMessage(msg window.Message) (*Window, error) {
	return w.do("send message", func(h window.Handle) error {
		return w.backend.SendMessage(h, msg)
	})
}

// PostMessage queues a raw message
func (w *Window) PostMessage(msg window.Message) (*Window, error) {
	return w.do("post message", func(h window.Handle) error {
		return w.backend.PostMessage(h, msg)
	})
}

func (w *Window) do(op string, fn func(h window.Handle) error) (*Window, error) {
	if err := fn(w.Handle()); err != nil {
		return w, w.wrap(op, err)
	}
	return w, nil
}

func (w *Window) wrap(op string, err error) error {
	if errors.Is(err, window.ErrNoWindow) {
		return fmt.Errorf("%w: %d", ErrWindowNotFound, w.Handle())
	}
	return fmt.Errorf("failed to %s window %d: %w", op, w.Handle(), err)
}
