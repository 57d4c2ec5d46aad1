package window

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xprop"
)

const (
	rootEventMask   = xproto.EventMaskPropertyChange
	clientEventMask = xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify
)

// xevent is one item read off the X connection
type xevent struct {
	ev  xgb.Event
	err xgb.Error
}

// Subscribe starts translating X events into notifications:
//
//   - a window added to _NET_CLIENT_LIST is Shown, one removed is Destroyed
//   - a _NET_ACTIVE_WINDOW change is Activated
//   - _NET_WM_NAME or WM_NAME changing on a client is Redraw
//   - a client gaining _NET_WM_STATE_DEMANDS_ATTENTION is Flashed
//   - a client being mapped is Shown
//   - any other client property change is Unknown, with the atom as Code
func (b *X11Backend) Subscribe(fn func(Notification)) error {
	b.mu.Lock()
	if b.stopChan != nil {
		b.mu.Unlock()
		return fmt.Errorf("already subscribed")
	}
	b.mu.Unlock()

	if err := xproto.ChangeWindowAttributesChecked(
		b.xu.Conn(),
		b.root,
		xproto.CwEventMask,
		[]uint32{rootEventMask},
	).Check(); err != nil {
		return fmt.Errorf("failed to set root event mask: %w", err)
	}

	clients, err := ewmh.ClientListGet(b.xu)
	if err != nil {
		b.log.Debug().Err(err).Msg("Subscribe: no _NET_CLIENT_LIST yet")
	}
	known := make(map[xproto.Window]struct{}, len(clients))
	urgent := make(map[xproto.Window]bool, len(clients))
	for _, win := range clients {
		b.selectClient(win)
		known[win] = struct{}{}
		urgent[win] = b.demandsAttention(win)
	}

	b.mu.Lock()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	b.events = make(chan xevent)
	b.clients = known
	b.urgent = urgent
	stop, done, events := b.stopChan, b.done, b.events
	b.mu.Unlock()

	b.readerOnce.Do(func() { go b.readEvents() })
	go b.eventLoop(fn, stop, done, events)
	b.log.Debug().Int("clients", len(known)).Msg("Started watching for window events")
	return nil
}

// Unsubscribe stops the event loop and waits for it to exit. It must not
// be called from the notification callback.
func (b *X11Backend) Unsubscribe() {
	b.mu.Lock()
	stop, done := b.stopChan, b.done
	b.stopChan, b.done, b.events = nil, nil, nil
	b.clients, b.urgent = nil, nil
	b.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	_ = xproto.ChangeWindowAttributesChecked(
		b.xu.Conn(),
		b.root,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskNoEvent},
	).Check()
	b.log.Debug().Msg("Stopped watching for window events")
}

// readEvents blocks on the X connection for the lifetime of the backend
// and hands events to the current subscription. Events that arrive while
// nobody is subscribed are dropped so the connection never stalls.
func (b *X11Backend) readEvents() {
	conn := b.xu.Conn()
	for {
		ev, xerr := conn.WaitForEvent()
		if ev == nil && xerr == nil {
			b.log.Debug().Msg("X11 connection closed")
			return
		}

		b.mu.Lock()
		stop, events := b.stopChan, b.events
		b.mu.Unlock()
		if stop == nil {
			continue
		}

		select {
		case events <- xevent{ev: ev, err: xerr}:
		case <-stop:
		}
	}
}

func (b *X11Backend) eventLoop(fn func(Notification), stop, done chan struct{}, events <-chan xevent) {
	defer close(done)

	for {
		var item xevent
		select {
		case <-stop:
			return
		case item = <-events:
		}

		if item.err != nil {
			// Requests against windows that vanished fail with BadWindow
			b.log.Debug().Str("error", item.err.Error()).Msg("X11 error")
			continue
		}

		for _, n := range b.translate(item.ev) {
			select {
			case <-stop:
				return
			default:
			}
			fn(n)
		}
	}
}

// translate maps one X event to zero or more notifications
func (b *X11Backend) translate(ev interface{}) []Notification {
	switch e := ev.(type) {
	case xproto.PropertyNotifyEvent:
		if e.Window == b.root {
			return b.rootPropertyChanged(e.Atom)
		}
		return b.clientPropertyChanged(e.Window, e.Atom)
	case xproto.MapNotifyEvent:
		if b.isKnown(e.Window) {
			return []Notification{{Kind: KindShown, Handle: Handle(e.Window)}}
		}
	case xproto.DestroyNotifyEvent:
		if b.forget(e.Window) {
			return []Notification{{Kind: KindDestroyed, Handle: Handle(e.Window)}}
		}
	}
	return nil
}

func (b *X11Backend) rootPropertyChanged(atom xproto.Atom) []Notification {
	switch b.atomName(atom) {
	case "_NET_CLIENT_LIST":
		return b.clientListChanged()
	case "_NET_ACTIVE_WINDOW":
		active, err := ewmh.ActiveWindowGet(b.xu)
		if err != nil || active == 0 {
			return nil
		}
		return []Notification{{Kind: KindActivated, Handle: Handle(active)}}
	}
	return nil
}

func (b *X11Backend) clientPropertyChanged(win xproto.Window, atom xproto.Atom) []Notification {
	if !b.isKnown(win) {
		return nil
	}

	switch b.atomName(atom) {
	case "_NET_WM_NAME", "WM_NAME":
		return []Notification{{Kind: KindRedraw, Handle: Handle(win)}}
	case "_NET_WM_STATE":
		now := b.demandsAttention(win)
		b.mu.Lock()
		was := b.urgent[win]
		if b.urgent != nil {
			b.urgent[win] = now
		}
		b.mu.Unlock()
		if now && !was {
			return []Notification{{Kind: KindFlashed, Handle: Handle(win)}}
		}
		return nil
	}
	return []Notification{{Kind: KindUnknown, Handle: Handle(win), Code: uint32(atom)}}
}

// clientListChanged diffs _NET_CLIENT_LIST against the known clients
func (b *X11Backend) clientListChanged() []Notification {
	clients, err := ewmh.ClientListGet(b.xu)
	if err != nil {
		b.log.Debug().Err(err).Msg("Failed to read _NET_CLIENT_LIST")
		return nil
	}

	current := make(map[xproto.Window]struct{}, len(clients))
	var added []xproto.Window
	b.mu.Lock()
	for _, win := range clients {
		current[win] = struct{}{}
		if _, ok := b.clients[win]; !ok {
			added = append(added, win)
		}
	}
	var removed []xproto.Window
	for win := range b.clients {
		if _, ok := current[win]; !ok {
			removed = append(removed, win)
		}
	}
	if b.clients != nil {
		b.clients = current
	}
	for _, win := range removed {
		delete(b.urgent, win)
	}
	b.mu.Unlock()

	out := make([]Notification, 0, len(added)+len(removed))
	for _, win := range removed {
		out = append(out, Notification{Kind: KindDestroyed, Handle: Handle(win)})
	}
	for _, win := range added {
		b.selectClient(win)
		out = append(out, Notification{Kind: KindShown, Handle: Handle(win)})
	}
	return out
}

func (b *X11Backend) selectClient(win xproto.Window) {
	err := xproto.ChangeWindowAttributesChecked(
		b.xu.Conn(),
		win,
		xproto.CwEventMask,
		[]uint32{clientEventMask},
	).Check()
	if err != nil {
		b.log.Debug().Uint32("window", uint32(win)).Err(err).Msg("Failed to select client events")
	}
}

func (b *X11Backend) demandsAttention(win xproto.Window) bool {
	states, err := ewmh.WmStateGet(b.xu, win)
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == "_NET_WM_STATE_DEMANDS_ATTENTION" {
			return true
		}
	}
	return false
}

func (b *X11Backend) isKnown(win xproto.Window) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clients[win]
	return ok
}

// forget drops win from the known clients, reporting whether it was known
func (b *X11Backend) forget(win xproto.Window) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[win]; !ok {
		return false
	}
	delete(b.clients, win)
	delete(b.urgent, win)
	return true
}

func (b *X11Backend) atomName(atom xproto.Atom) string {
	name, err := xprop.AtomName(b.xu, atom)
	if err != nil {
		return ""
	}
	return name
}
