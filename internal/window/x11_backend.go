package window

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
)

// maxTreeDepth bounds ancestor walks on broken window trees
const maxTreeDepth = 64

// X11Backend implements Backend on an X11 display with an EWMH window
// manager. Top-level windows are the managed clients of _NET_CLIENT_LIST.
type X11Backend struct {
	xu   *xgbutil.XUtil
	root xproto.Window
	log  *zerolog.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	events   chan xevent
	clients  map[xproto.Window]struct{}
	urgent   map[xproto.Window]bool

	readerOnce sync.Once

	keysOnce sync.Once
	keysErr  error
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend connects to display; an empty display uses $DISPLAY
func NewX11Backend(display string) (*X11Backend, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	return &X11Backend{
		xu:   xu,
		root: xu.RootWin(),
		log:  logger.WithComponent("x11-backend"),
	}, nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// Close stops notification delivery and closes the X11 connection
func (b *X11Backend) Close() error {
	b.Unsubscribe()
	b.xu.Conn().Close()
	return nil
}

// EnumerateTopLevelWindows returns _NET_CLIENT_LIST, falling back to the
// children of the root window when the window manager does not publish it
func (b *X11Backend) EnumerateTopLevelWindows() ([]Handle, error) {
	clients, err := ewmh.ClientListGet(b.xu)
	if err == nil && len(clients) > 0 {
		b.log.Debug().Int("count", len(clients)).Msg("Enumerate: using EWMH _NET_CLIENT_LIST")
		return toHandles(clients), nil
	}
	if err != nil {
		b.log.Debug().Err(err).Msg("Enumerate: EWMH failed, falling back to QueryTree")
	} else {
		b.log.Debug().Msg("Enumerate: EWMH returned empty, falling back to QueryTree")
	}

	tree, err := xproto.QueryTree(b.xu.Conn(), b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query root window children: %w", err)
	}
	b.log.Debug().Int("count", len(tree.Children)).Msg("Enumerate: using QueryTree fallback")
	return toHandles(tree.Children), nil
}

// OwningProcessID reads _NET_WM_PID
func (b *X11Backend) OwningProcessID(h Handle) PID {
	pid, err := ewmh.WmPidGet(b.xu, xproto.Window(h))
	if err != nil {
		return 0
	}
	return PID(pid)
}

// WindowText reads _NET_WM_NAME, then WM_NAME
func (b *X11Backend) WindowText(h Handle) string {
	win := xproto.Window(h)
	if name, err := ewmh.WmNameGet(b.xu, win); err == nil && name != "" {
		return name
	}
	if name, err := icccm.WmNameGet(b.xu, win); err == nil {
		return name
	}
	return ""
}

// ClassName returns the class part of WM_CLASS, or the instance part if
// the class is empty
func (b *X11Backend) ClassName(h Handle) string {
	class, err := icccm.WmClassGet(b.xu, xproto.Window(h))
	if err != nil {
		return ""
	}
	if class.Class != "" {
		return class.Class
	}
	return class.Instance
}

// TopLevelAncestor walks up the window tree to the nearest managed client.
// Under a reparenting window manager that is the client itself, not its
// frame. The root window has no top-level ancestor.
func (b *X11Backend) TopLevelAncestor(h Handle) Handle {
	cur := xproto.Window(h)
	if cur == 0 || cur == b.root {
		return 0
	}

	clients := b.clientSet()
	for i := 0; i < maxTreeDepth; i++ {
		if _, ok := clients[cur]; ok {
			return Handle(cur)
		}
		tree, err := xproto.QueryTree(b.xu.Conn(), cur).Reply()
		if err != nil {
			return 0
		}
		if tree.Parent == b.root || tree.Parent == 0 {
			return Handle(cur)
		}
		cur = tree.Parent
	}
	return 0
}

// OwnerProperty reads WM_TRANSIENT_FOR
func (b *X11Backend) OwnerProperty(h Handle) Handle {
	owner, err := icccm.WmTransientForGet(b.xu, xproto.Window(h))
	if err != nil {
		return 0
	}
	return Handle(owner)
}

// IsVisible reports whether the window is mapped or iconified. Iconified
// windows are unmapped on X11 but still count as shown, like a minimized
// window on other platforms.
func (b *X11Backend) IsVisible(h Handle) bool {
	win := xproto.Window(h)
	attrs, err := xproto.GetWindowAttributes(b.xu.Conn(), win).Reply()
	if err != nil {
		return false
	}
	if attrs.MapState == xproto.MapStateViewable {
		return true
	}
	state, err := icccm.WmStateGet(b.xu, win)
	return err == nil && state.State == icccm.StateIconic
}

// ShellRootWindow returns the _NET_WM_WINDOW_TYPE_DESKTOP client if the
// desktop environment draws one, else the root window
func (b *X11Backend) ShellRootWindow() Handle {
	if desktop := b.findWindowOfType("_NET_WM_WINDOW_TYPE_DESKTOP"); desktop != 0 {
		return Handle(desktop)
	}
	return Handle(b.root)
}

// ShellTrayWindow returns the first _NET_WM_WINDOW_TYPE_DOCK window
func (b *X11Backend) ShellTrayWindow() Handle {
	return Handle(b.findWindowOfType("_NET_WM_WINDOW_TYPE_DOCK"))
}

func (b *X11Backend) findWindowOfType(windowType string) xproto.Window {
	candidates, _ := ewmh.ClientListGet(b.xu)
	if tree, err := xproto.QueryTree(b.xu.Conn(), b.root).Reply(); err == nil {
		candidates = append(candidates, tree.Children...)
	}

	for _, win := range candidates {
		types, err := ewmh.WmWindowTypeGet(b.xu, win)
		if err != nil {
			continue
		}
		for _, t := range types {
			if t == windowType {
				return win
			}
		}
	}
	return 0
}

// clientSet returns the managed clients, from the notification loop's
// view when subscribed
func (b *X11Backend) clientSet() map[xproto.Window]struct{} {
	b.mu.Lock()
	if b.clients != nil {
		set := make(map[xproto.Window]struct{}, len(b.clients))
		for win := range b.clients {
			set[win] = struct{}{}
		}
		b.mu.Unlock()
		return set
	}
	b.mu.Unlock()

	clients, _ := ewmh.ClientListGet(b.xu)
	set := make(map[xproto.Window]struct{}, len(clients))
	for _, win := range clients {
		set[win] = struct{}{}
	}
	return set
}

func toHandles(wins []xproto.Window) []Handle {
	out := make([]Handle, 0, len(wins))
	for _, win := range wins {
		out = append(out, Handle(win))
	}
	return out
}
