package window

import (
	"fmt"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const (
	stateMaxVert          = "_NET_WM_STATE_MAXIMIZED_VERT"
	stateMaxHorz          = "_NET_WM_STATE_MAXIMIZED_HORZ"
	stateHidden           = "_NET_WM_STATE_HIDDEN"
	stateDemandsAttention = "_NET_WM_STATE_DEMANDS_ATTENTION"

	// sourcePager marks EWMH requests as coming from a pager or taskbar,
	// which window managers honor without focus-stealing checks
	sourcePager = 2
)

// IsAlive reports whether h still names a window
func (b *X11Backend) IsAlive(h Handle) bool {
	if h == 0 {
		return false
	}
	_, err := xproto.GetWindowAttributes(b.xu.Conn(), xproto.Window(h)).Reply()
	return err == nil
}

// ActiveWindow returns _NET_ACTIVE_WINDOW, 0 if unset
func (b *X11Backend) ActiveWindow() Handle {
	active, err := ewmh.ActiveWindowGet(b.xu)
	if err != nil {
		return 0
	}
	return Handle(active)
}

// IsActive compares h with _NET_ACTIVE_WINDOW
func (b *X11Backend) IsActive(h Handle) bool {
	return h != 0 && b.ActiveWindow() == h
}

// HasFocus reports whether the input focus is h or inside h
func (b *X11Backend) HasFocus(h Handle) bool {
	if h == 0 {
		return false
	}
	reply, err := xproto.GetInputFocus(b.xu.Conn()).Reply()
	if err != nil {
		return false
	}
	return Handle(reply.Focus) == h || b.TopLevelAncestor(Handle(reply.Focus)) == h
}

// IsEnabled reads the input field of WM_HINTS; windows without hints
// accept input
func (b *X11Backend) IsEnabled(h Handle) bool {
	if !b.IsAlive(h) {
		return false
	}
	hints, err := icccm.WmHintsGet(b.xu, xproto.Window(h))
	if err != nil || hints.Flags&icccm.HintInput == 0 {
		return true
	}
	return hints.Input != 0
}

// Rect returns the frame geometry including window manager decorations
func (b *X11Backend) Rect(h Handle) (Rect, error) {
	if err := b.check(h); err != nil {
		return Rect{}, err
	}
	geom, err := xwindow.New(b.xu, xproto.Window(h)).DecorGeometry()
	if err != nil {
		return Rect{}, fmt.Errorf("failed to get geometry of window %d: %w", h, err)
	}
	return Rect{X: geom.X(), Y: geom.Y(), Width: geom.Width(), Height: geom.Height()}, nil
}

// SetPosition moves the window through the window manager
func (b *X11Backend) SetPosition(h Handle, p Point) error {
	if err := b.check(h); err != nil {
		return err
	}
	if err := ewmh.MoveWindow(b.xu, xproto.Window(h), p.X, p.Y); err != nil {
		return fmt.Errorf("failed to move window %d: %w", h, err)
	}
	return nil
}

// SetSize resizes the window through the window manager
func (b *X11Backend) SetSize(h Handle, s Size) error {
	if err := b.check(h); err != nil {
		return err
	}
	if err := ewmh.ResizeWindow(b.xu, xproto.Window(h), s.Width, s.Height); err != nil {
		return fmt.Errorf("failed to resize window %d: %w", h, err)
	}
	return nil
}

// SetOpacity sets _NET_WM_WINDOW_OPACITY; a compositor applies it
func (b *X11Backend) SetOpacity(h Handle, opacity float64) error {
	if err := b.check(h); err != nil {
		return err
	}
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	if err := ewmh.WmWindowOpacitySet(b.xu, xproto.Window(h), opacity); err != nil {
		return fmt.Errorf("failed to set opacity of window %d: %w", h, err)
	}
	return nil
}

// Show maps the window and optionally activates it. Default also clears
// maximized and hidden states.
func (b *X11Backend) Show(h Handle, opts ShowOptions) error {
	if err := b.check(h); err != nil {
		return err
	}
	win := xproto.Window(h)
	if opts.Default {
		if err := b.clearStates(win); err != nil {
			return err
		}
	}
	if err := xproto.MapWindowChecked(b.xu.Conn(), win).Check(); err != nil {
		return fmt.Errorf("failed to map window %d: %w", h, err)
	}
	if opts.Activate {
		return b.activate(win)
	}
	return nil
}

// Hide unmaps the window
func (b *X11Backend) Hide(h Handle) error {
	if err := b.check(h); err != nil {
		return err
	}
	if err := xproto.UnmapWindowChecked(b.xu.Conn(), xproto.Window(h)).Check(); err != nil {
		return fmt.Errorf("failed to unmap window %d: %w", h, err)
	}
	return nil
}

// Restore de-iconifies the window. defaultPlacement additionally drops
// the maximized state.
func (b *X11Backend) Restore(h Handle, defaultPlacement bool) error {
	if err := b.check(h); err != nil {
		return err
	}
	win := xproto.Window(h)
	if defaultPlacement {
		if err := b.clearStates(win); err != nil {
			return err
		}
	} else if err := ewmh.WmStateReq(b.xu, win, ewmh.StateRemove, stateHidden); err != nil {
		return fmt.Errorf("failed to restore window %d: %w", h, err)
	}
	if err := xproto.MapWindowChecked(b.xu.Conn(), win).Check(); err != nil {
		return fmt.Errorf("failed to map window %d: %w", h, err)
	}
	return nil
}

// Minimize asks the window manager to iconify the window (ICCCM
// WM_CHANGE_STATE). force also unmaps it directly, for windows whose
// manager ignores the request. The window manager always picks the next
// focused window, so activate has no effect on X11.
func (b *X11Backend) Minimize(h Handle, _, force bool) error {
	if err := b.check(h); err != nil {
		return err
	}
	win := xproto.Window(h)
	if err := ewmh.ClientEvent(b.xu, win, "WM_CHANGE_STATE", icccm.StateIconic); err != nil {
		return fmt.Errorf("failed to iconify window %d: %w", h, err)
	}
	if force {
		if err := xproto.UnmapWindowChecked(b.xu.Conn(), win).Check(); err != nil {
			return fmt.Errorf("failed to unmap window %d: %w", h, err)
		}
	}
	return nil
}

// Maximize adds both maximized states
func (b *X11Backend) Maximize(h Handle) error {
	if err := b.check(h); err != nil {
		return err
	}
	err := ewmh.WmStateReqExtra(b.xu, xproto.Window(h), ewmh.StateAdd, stateMaxVert, stateMaxHorz, sourcePager)
	if err != nil {
		return fmt.Errorf("failed to maximize window %d: %w", h, err)
	}
	return nil
}

// Flash maps Caption to _NET_WM_STATE_DEMANDS_ATTENTION and Tray to the
// WM_HINTS urgency flag. Window managers clear both when the window is
// activated, which gives FlashUntilActive; FlashOnce clears them itself
// after opts.Duration(). A stop request clears both.
func (b *X11Backend) Flash(h Handle, opts FlashOptions) error {
	if err := b.check(h); err != nil {
		return err
	}
	win := xproto.Window(h)
	if opts.Stop() {
		return b.clearAttention(win, true, true)
	}

	if opts.Caption {
		if err := ewmh.WmStateReq(b.xu, win, ewmh.StateAdd, stateDemandsAttention); err != nil {
			return fmt.Errorf("failed to flash window %d: %w", h, err)
		}
	}
	if opts.Tray {
		if err := b.setUrgency(win, true); err != nil {
			return err
		}
	}
	if opts.Mode == FlashOnce {
		time.AfterFunc(opts.Duration(), func() {
			if err := b.clearAttention(win, opts.Caption, opts.Tray); err != nil {
				b.log.Debug().Err(err).Uint32("window", uint32(win)).Msg("Failed to stop flash")
			}
		})
	}
	return nil
}

// clearAttention drops the attention flags of the given scopes
func (b *X11Backend) clearAttention(win xproto.Window, caption, tray bool) error {
	if caption {
		if err := ewmh.WmStateReq(b.xu, win, ewmh.StateRemove, stateDemandsAttention); err != nil {
			return fmt.Errorf("failed to stop flashing window %d: %w", win, err)
		}
	}
	if tray {
		return b.setUrgency(win, false)
	}
	return nil
}

func (b *X11Backend) setUrgency(win xproto.Window, urgent bool) error {
	hints, err := icccm.WmHintsGet(b.xu, win)
	if err != nil {
		hints = &icccm.Hints{}
	}
	if urgent {
		hints.Flags |= icccm.HintUrgency
	} else {
		hints.Flags &^= icccm.HintUrgency
	}
	if err := icccm.WmHintsSet(b.xu, win, hints); err != nil {
		return fmt.Errorf("failed to set urgency of window %d: %w", win, err)
	}
	return nil
}

// EnableInput sets the input field of WM_HINTS
func (b *X11Backend) EnableInput(h Handle, enable bool) error {
	if err := b.check(h); err != nil {
		return err
	}
	win := xproto.Window(h)
	hints, err := icccm.WmHintsGet(b.xu, win)
	if err != nil {
		hints = &icccm.Hints{}
	}
	hints.Flags |= icccm.HintInput
	hints.Input = 0
	if enable {
		hints.Input = 1
	}
	if err := icccm.WmHintsSet(b.xu, win, hints); err != nil {
		return fmt.Errorf("failed to set input hint of window %d: %w", h, err)
	}
	return nil
}

// BringToTop raises the window to the top of the stack
func (b *X11Backend) BringToTop(h Handle) error {
	if err := b.check(h); err != nil {
		return err
	}
	err := xproto.ConfigureWindowChecked(
		b.xu.Conn(),
		xproto.Window(h),
		xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to raise window %d: %w", h, err)
	}
	return nil
}

// Focus sets the input focus to the window
func (b *X11Backend) Focus(h Handle) error {
	if err := b.check(h); err != nil {
		return err
	}
	err := xproto.SetInputFocusChecked(
		b.xu.Conn(),
		xproto.InputFocusPointerRoot,
		xproto.Window(h),
		xproto.TimeCurrentTime,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to focus window %d: %w", h, err)
	}
	return nil
}

// Parent returns WM_TRANSIENT_FOR when set, otherwise the parent in the
// window tree. Children of the root window have no parent.
func (b *X11Backend) Parent(h Handle) (Handle, error) {
	if err := b.check(h); err != nil {
		return 0, err
	}
	if owner := b.OwnerProperty(h); owner != 0 && xproto.Window(owner) != b.root {
		return owner, nil
	}
	tree, err := xproto.QueryTree(b.xu.Conn(), xproto.Window(h)).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query parent of window %d: %w", h, err)
	}
	if tree.Parent == b.root {
		return 0, nil
	}
	return Handle(tree.Parent), nil
}

// CloseWindow asks the window manager to close the window gracefully
func (b *X11Backend) CloseWindow(h Handle) error {
	if err := b.check(h); err != nil {
		return err
	}
	if err := ewmh.CloseWindow(b.xu, xproto.Window(h)); err != nil {
		return fmt.Errorf("failed to close window %d: %w", h, err)
	}
	return nil
}

// DestroyWindow disconnects the client owning the window
func (b *X11Backend) DestroyWindow(h Handle) error {
	if err := b.check(h); err != nil {
		return err
	}
	if err := xproto.KillClientChecked(b.xu.Conn(), uint32(h)).Check(); err != nil {
		return fmt.Errorf("failed to kill client of window %d: %w", h, err)
	}
	return nil
}

// SendMessage delivers a ClientMessage to the window's owner and waits
// for the server to accept it
func (b *X11Backend) SendMessage(h Handle, msg Message) error {
	ev, err := b.clientMessage(h, msg)
	if err != nil {
		return err
	}
	win := xproto.Window(h)
	if err := xproto.SendEventChecked(b.xu.Conn(), false, win, xproto.EventMaskNoEvent, string(ev.Bytes())).Check(); err != nil {
		return fmt.Errorf("failed to send %s to window %d: %w", msg.Type, h, err)
	}
	return nil
}

// PostMessage queues a ClientMessage without waiting
func (b *X11Backend) PostMessage(h Handle, msg Message) error {
	ev, err := b.clientMessage(h, msg)
	if err != nil {
		return err
	}
	xproto.SendEvent(b.xu.Conn(), false, xproto.Window(h), xproto.EventMaskNoEvent, string(ev.Bytes()))
	return nil
}

func (b *X11Backend) clientMessage(h Handle, msg Message) (xproto.ClientMessageEvent, error) {
	if err := b.check(h); err != nil {
		return xproto.ClientMessageEvent{}, err
	}
	atom, err := xprop.Atm(b.xu, msg.Type)
	if err != nil {
		return xproto.ClientMessageEvent{}, fmt.Errorf("failed to intern %q: %w", msg.Type, err)
	}
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(h),
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(msg.Data[:]),
	}, nil
}

func (b *X11Backend) activate(win xproto.Window) error {
	if err := ewmh.ActiveWindowReq(b.xu, win); err != nil {
		return fmt.Errorf("failed to activate window %d: %w", win, err)
	}
	return nil
}

func (b *X11Backend) clearStates(win xproto.Window) error {
	err := ewmh.WmStateReqExtra(b.xu, win, ewmh.StateRemove, stateMaxVert, stateMaxHorz, sourcePager)
	if err == nil {
		err = ewmh.WmStateReq(b.xu, win, ewmh.StateRemove, stateHidden)
	}
	if err != nil {
		return fmt.Errorf("failed to reset state of window %d: %w", win, err)
	}
	return nil
}

// check fails with ErrNoWindow when h no longer names a window
func (b *X11Backend) check(h Handle) error {
	if !b.IsAlive(h) {
		return fmt.Errorf("window %d: %w", h, ErrNoWindow)
	}
	return nil
}
