package windowtest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// Window describes one fake window. Ancestor defaults to the window itself.
type Window struct {
	Handle   window.Handle
	PID      window.PID
	Title    string
	Class    string
	Ancestor window.Handle
	Owner    window.Handle
	Parent   window.Handle
	Visible  bool
	Disabled bool
	Rect     window.Rect
	Opacity  float64
	Flashing bool
}

// Fake implements window.Backend over a map of windows
type Fake struct {
	mu      sync.Mutex
	windows map[window.Handle]*Window
	order   []window.Handle
	fn      func(window.Notification)
	calls   []string

	Root    window.Handle
	Tray    window.Handle
	Active  window.Handle
	Focused window.Handle

	EnumerateErr error
	SubscribeErr error
	Unsubscribes int
}

var _ window.Backend = (*Fake)(nil)

// New returns an empty fake with root window 1
func New() *Fake {
	return &Fake{
		windows: make(map[window.Handle]*Window),
		Root:    1,
	}
}

// Add registers a live window
func (f *Fake) Add(w Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.Ancestor == 0 {
		w.Ancestor = w.Handle
	}
	if w.Opacity == 0 {
		w.Opacity = 1
	}
	if _, ok := f.windows[w.Handle]; !ok {
		f.order = append(f.order, w.Handle)
	}
	f.windows[w.Handle] = &w
}

// Remove makes h a dead window: every query on it returns zero values
func (f *Fake) Remove(h window.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, h)
	for i, o := range f.order {
		if o == h {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Update mutates a live window in place
func (f *Fake) Update(h window.Handle, fn func(w *Window)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[h]; ok {
		fn(w)
	}
}

// Get returns a copy of a live window
func (f *Fake) Get(h window.Handle) (Window, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[h]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// Notify delivers n to the subscriber, if any
func (f *Fake) Notify(n window.Notification) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Subscribed reports whether a callback is registered
func (f *Fake) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn != nil
}

// Calls returns the controller operations performed so far
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *Fake) live(h window.Handle) (*Window, error) {
	w, ok := f.windows[h]
	if !ok {
		return nil, fmt.Errorf("window %d: %w", h, window.ErrNoWindow)
	}
	return w, nil
}

// Name implements window.Backend
func (f *Fake) Name() string { return "fake" }

// Close implements window.Backend
func (f *Fake) Close() error {
	f.Unsubscribe()
	return nil
}

// Subscribe implements window.NotificationSource
func (f *Fake) Subscribe(fn func(window.Notification)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return f.SubscribeErr
	}
	f.fn = fn
	return nil
}

// Unsubscribe implements window.NotificationSource
func (f *Fake) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = nil
	f.Unsubscribes++
}

// EnumerateTopLevelWindows implements window.SnapshotProvider
func (f *Fake) EnumerateTopLevelWindows() ([]window.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnumerateErr != nil {
		return nil, f.EnumerateErr
	}
	return append([]window.Handle(nil), f.order...), nil
}

// OwningProcessID implements window.SnapshotProvider
func (f *Fake) OwningProcessID(h window.Handle) window.PID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[h]; ok {
		return w.PID
	}
	return 0
}

// WindowText implements window.SnapshotProvider
func (f *Fake) WindowText(h window.Handle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[h]; ok {
		return w.Title
	}
	return ""
}

// ClassName implements window.SnapshotProvider
func (f *Fake) ClassName(h window.Handle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[h]; ok {
		return w.Class
	}
	return ""
}

// TopLevelAncestor implements window.SnapshotProvider
func (f *Fake) TopLevelAncestor(h window.Handle) window.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[h]; ok {
		return w.Ancestor
	}
	return 0
}

// OwnerProperty implements window.SnapshotProvider
func (f *Fake) OwnerProperty(h window.Handle) window.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.windows[h]; ok {
		return w.Owner
	}
	return 0
}

// IsVisible implements window.SnapshotProvider
func (f *Fake) IsVisible(h window.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[h]
	return ok && w.Visible
}

// ShellRootWindow implements window.SnapshotProvider
func (f *Fake) ShellRootWindow() window.Handle { return f.Root }

// ShellTrayWindow implements window.SnapshotProvider
func (f *Fake) ShellTrayWindow() window.Handle { return f.Tray }

// IsAlive implements window.Controller
func (f *Fake) IsAlive(h window.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.windows[h]
	return ok
}

// IsActive implements window.Controller
func (f *Fake) IsActive(h window.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return h != 0 && f.Active == h
}

// HasFocus implements window.Controller
func (f *Fake) HasFocus(h window.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return h != 0 && f.Focused == h
}

// IsEnabled implements window.Controller
func (f *Fake) IsEnabled(h window.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[h]
	return ok && !w.Disabled
}

// Rect implements window.Controller
func (f *Fake) Rect(h window.Handle) (window.Rect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return window.Rect{}, err
	}
	return w.Rect, nil
}

// SetPosition implements window.Controller
func (f *Fake) SetPosition(h window.Handle, p window.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("position %d %d,%d", h, p.X, p.Y)
	w.Rect.X, w.Rect.Y = p.X, p.Y
	return nil
}

// SetSize implements window.Controller
func (f *Fake) SetSize(h window.Handle, s window.Size) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("size %d %dx%d", h, s.Width, s.Height)
	w.Rect.Width, w.Rect.Height = s.Width, s.Height
	return nil
}

// SetOpacity implements window.Controller
func (f *Fake) SetOpacity(h window.Handle, opacity float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("opacity %d %.2f", h, opacity)
	w.Opacity = opacity
	return nil
}

// Show implements window.Controller
func (f *Fake) Show(h window.Handle, opts window.ShowOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("show %d activate=%t default=%t", h, opts.Activate, opts.Default)
	w.Visible = true
	if opts.Activate {
		f.Active = h
	}
	return nil
}

// Hide implements window.Controller
func (f *Fake) Hide(h window.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("hide %d", h)
	w.Visible = false
	return nil
}

// Restore implements window.Controller
func (f *Fake) Restore(h window.Handle, defaultPlacement bool) error {
	return f.simple(h, "restore %d default=%t", h, defaultPlacement)
}

// Minimize implements window.Controller
func (f *Fake) Minimize(h window.Handle, activate, force bool) error {
	return f.simple(h, "minimize %d activate=%t force=%t", h, activate, force)
}

// Maximize implements window.Controller
func (f *Fake) Maximize(h window.Handle) error {
	return f.simple(h, "maximize %d", h)
}

// Flash implements window.Controller
func (f *Fake) Flash(h window.Handle, opts window.FlashOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("flash %d stop=%t mode=%d", h, opts.Stop(), opts.Mode)
	w.Flashing = !opts.Stop()
	return nil
}

// SendKeys implements window.Controller
func (f *Fake) SendKeys(h window.Handle, text string) error {
	return f.simple(h, "keys %d %q", h, text)
}

// EnableInput implements window.Controller
func (f *Fake) EnableInput(h window.Handle, enable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return err
	}
	f.record("enable %d %t", h, enable)
	w.Disabled = !enable
	return nil
}

// BringToTop implements window.Controller
func (f *Fake) BringToTop(h window.Handle) error {
	return f.simple(h, "raise %d", h)
}

// Focus implements window.Controller
func (f *Fake) Focus(h window.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.live(h); err != nil {
		return err
	}
	f.record("focus %d", h)
	f.Focused = h
	return nil
}

// Parent implements window.Controller
func (f *Fake) Parent(h window.Handle) (window.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.live(h)
	if err != nil {
		return 0, err
	}
	return w.Parent, nil
}

// CloseWindow implements window.Controller; the window stays alive until
// the test removes it, like a real graceful close request.
func (f *Fake) CloseWindow(h window.Handle) error {
	return f.simple(h, "close %d", h)
}

// DestroyWindow implements window.Controller
func (f *Fake) DestroyWindow(h window.Handle) error {
	if err := f.simple(h, "destroy %d", h); err != nil {
		return err
	}
	f.Remove(h)
	return nil
}

// SendMessage implements window.Controller
func (f *Fake) SendMessage(h window.Handle, msg window.Message) error {
	return f.simple(h, "send %d %s", h, msg.Type)
}

// PostMessage implements window.Controller
func (f *Fake) PostMessage(h window.Handle, msg window.Message) error {
	return f.simple(h, "post %d %s", h, msg.Type)
}

func (f *Fake) simple(h window.Handle, format string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.live(h); err != nil {
		return err
	}
	f.record(format, args...)
	return nil
}

// Handles returns the live handles in ascending order
func (f *Fake) Handles() []window.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]window.Handle, 0, len(f.windows))
	for h := range f.windows {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
