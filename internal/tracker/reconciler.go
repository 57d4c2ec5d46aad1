package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
	"github.com/rs/zerolog"
)

var (
	// ErrSubscription wraps a failure to register for notifications
	ErrSubscription = errors.New("failed to subscribe to window notifications")

	// ErrAlreadyOpen is returned by Open on a running Reconciler
	ErrAlreadyOpen = errors.New("tracker is already open")
)

// Default tray lookup, matching the Windows taskbar
const (
	DefaultTrayProcessName = "explorer"
	DefaultTrayWindowClass = "Shell_TrayWnd"
)

// Options configures a Reconciler
type Options struct {
	Provider window.SnapshotProvider
	Source   window.NotificationSource
	Names    NameResolver
	Emitter  Emitter

	// The tray window is looked up once at Open among the enumerated
	// windows of TrayProcessName with class TrayWindowClass, falling back
	// to the provider's ShellTrayWindow.
	TrayProcessName string
	TrayWindowClass string

	// Now stamps events; defaults to time.Now
	Now func() time.Time
}

// Stats counts notification outcomes since Open
type Stats struct {
	Notifications uint64 `json:"notifications"`
	Ignored       uint64 `json:"ignored"`
	Unrecognized  uint64 `json:"unrecognized"`
	Events        uint64 `json:"events"`
}

// Reconciler turns raw window notifications into registry mutations and
// lifecycle events. All handlers run under one mutex, so a source that
// delivers from several goroutines is still serialized.
type Reconciler struct {
	provider    window.SnapshotProvider
	source      window.NotificationSource
	names       NameResolver
	emitter     Emitter
	trayProcess string
	trayClass   string
	now         func() time.Time
	log         *zerolog.Logger

	mu        sync.Mutex
	reg       *Registry
	shellRoot window.Handle
	shellTray window.Handle
	stats     Stats
}

// New creates a closed Reconciler
func New(opts Options) (*Reconciler, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("snapshot provider is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("notification source is required")
	}
	if opts.Names == nil {
		return nil, fmt.Errorf("process name resolver is required")
	}
	if opts.Emitter == nil {
		opts.Emitter = EmitterFunc(func(Event) {})
	}
	if opts.TrayProcessName == "" {
		opts.TrayProcessName = DefaultTrayProcessName
	}
	if opts.TrayWindowClass == "" {
		opts.TrayWindowClass = DefaultTrayWindowClass
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Reconciler{
		provider:    opts.Provider,
		source:      opts.Source,
		names:       opts.Names,
		emitter:     opts.Emitter,
		trayProcess: opts.TrayProcessName,
		trayClass:   opts.TrayWindowClass,
		now:         opts.Now,
		log:         logger.WithComponent("tracker"),
	}, nil
}

// Open builds the registry from a full enumeration, resolves the shell
// windows and subscribes to notifications. Enumeration emits no events.
// If the subscription fails nothing stays registered and the error wraps
// ErrSubscription.
func (r *Reconciler) Open() error {
	r.mu.Lock()
	if r.reg != nil {
		r.mu.Unlock()
		return ErrAlreadyOpen
	}

	reg, err := r.enumerate()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to enumerate windows: %w", err)
	}
	r.reg = reg
	r.stats = Stats{}
	r.shellRoot = r.provider.ShellRootWindow()
	r.shellTray = reg.findWindow(r.trayProcess, r.trayClass)
	if r.shellTray == 0 {
		r.shellTray = r.provider.ShellTrayWindow()
	}
	processes, windows := len(reg.pids), len(reg.hwnds)
	r.mu.Unlock()

	if err := r.source.Subscribe(r.Handle); err != nil {
		r.source.Unsubscribe()
		r.discard()
		r.log.Error().Err(err).Msg("Notification subscription failed")
		return fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	r.log.Info().
		Int("processes", processes).
		Int("windows", windows).
		Uint64("shell_root", uint64(r.shellRoot)).
		Uint64("shell_tray", uint64(r.shellTray)).
		Msg("Tracking started")
	return nil
}

// Close stops notification delivery and discards the registry. It is
// safe to call repeatedly and after a failed Open; no events are emitted
// once it returns.
func (r *Reconciler) Close() error {
	r.source.Unsubscribe()
	if r.discard() {
		r.log.Info().Msg("Tracking stopped")
	}
	return nil
}

func (r *Reconciler) discard() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	wasOpen := r.reg != nil
	r.reg = nil
	r.shellRoot, r.shellTray = 0, 0
	return wasOpen
}

// enumerate builds a registry from the currently visible, unowned
// top-level windows
func (r *Reconciler) enumerate() (*Registry, error) {
	handles, err := r.provider.EnumerateTopLevelWindows()
	if err != nil {
		return nil, err
	}

	reg := newRegistry()
	for _, h := range handles {
		if !r.structurallyEligible(h) {
			continue
		}
		if _, _, tracked := reg.lookup(h); tracked {
			continue
		}
		pid := r.provider.OwningProcessID(h)
		p, ok := reg.pids[pid]
		if !ok {
			p = newProcessEntry(pid, r.names.ProcessName(pid))
		}
		reg.add(p, NewWindowEntry(r.provider, h, pid, p.name))
	}
	return reg, nil
}

// IsOpen reports whether the registry is live
func (r *Reconciler) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg != nil
}

// ShellWindows returns the permanently excluded root and tray windows
func (r *Reconciler) ShellWindows() (root, tray window.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shellRoot, r.shellTray
}

// Stats returns notification counters
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Snapshot copies the registry; ok is false when closed
func (r *Reconciler) Snapshot() (s Snapshot, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return Snapshot{}, false
	}
	return r.reg.snapshot(), true
}

// Lookup returns the tracked entry for h
func (r *Reconciler) Lookup(h window.Handle) (*WindowEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return nil, false
	}
	_, w, ok := r.reg.lookup(h)
	return w, ok
}

// LastActivated returns the focused tracked window, 0 if none
func (r *Reconciler) LastActivated() window.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return 0
	}
	return r.reg.lastActivated
}

// Handle classifies and applies one raw notification
func (r *Reconciler) Handle(n window.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return
	}
	r.stats.Notifications++

	var handled bool
	switch n.Kind {
	case window.KindDestroyed:
		handled = r.destroyed(n.Handle)
	case window.KindActivated, window.KindCreated, window.KindActivatedOther:
		handled = r.gotFocus(n.Handle)
	case window.KindRedraw:
		handled = r.titleChanged(n.Handle)
	case window.KindFlashed:
		handled = r.flashed(n.Handle)
	case window.KindShown:
		handled = r.shown(n.Handle)
	default:
		r.stats.Unrecognized++
		r.log.Debug().
			Str("code", fmt.Sprintf("0x%04X", n.Code)).
			Uint64("hwnd", uint64(n.Handle)).
			Msg("Unrecognized notification")
		return
	}
	if !handled {
		r.stats.Ignored++
	}
}

// CheckWindow applies the eligibility filter to h and registers it if
// it is not tracked yet. It returns nil for ineligible handles.
func (r *Reconciler) CheckWindow(h window.Handle) *ProcessEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return nil
	}
	return r.checkWindow(h)
}

// Destroyed handles a window-destroyed notification
func (r *Reconciler) Destroyed(h window.Handle) {
	r.Handle(window.Notification{Kind: window.KindDestroyed, Handle: h})
}

// GotFocus handles an activation or creation notification
func (r *Reconciler) GotFocus(h window.Handle) {
	r.Handle(window.Notification{Kind: window.KindActivated, Handle: h})
}

// TitleChanged handles a redraw notification
func (r *Reconciler) TitleChanged(h window.Handle) {
	r.Handle(window.Notification{Kind: window.KindRedraw, Handle: h})
}

// Flashed handles a flash notification
func (r *Reconciler) Flashed(h window.Handle) {
	r.Handle(window.Notification{Kind: window.KindFlashed, Handle: h})
}

// structurallyEligible is the part of the filter that does not depend on
// the shell windows: a visible, unowned window that is its own top level.
func (r *Reconciler) structurallyEligible(h window.Handle) bool {
	if h == 0 {
		return false
	}
	if r.provider.TopLevelAncestor(h) != h {
		return false
	}
	if r.provider.OwnerProperty(h) != 0 {
		return false
	}
	return r.provider.IsVisible(h)
}

func (r *Reconciler) eligible(h window.Handle) bool {
	if h == 0 {
		return false
	}
	ancestor := r.provider.TopLevelAncestor(h)
	if ancestor == r.shellRoot || ancestor == r.shellTray {
		return false
	}
	if ancestor != h {
		return false
	}
	if r.provider.OwnerProperty(h) != 0 {
		return false
	}
	return r.provider.IsVisible(h)
}

func (r *Reconciler) checkWindow(h window.Handle) *ProcessEntry {
	if !r.eligible(h) {
		return nil
	}
	if p, ok := r.reg.hwnds[h]; ok {
		return p
	}

	pid := r.provider.OwningProcessID(h)
	p, ok := r.reg.pids[pid]
	if !ok {
		p = newProcessEntry(pid, r.names.ProcessName(pid))
		r.reg.pids[pid] = p
		r.emit(CategoryCreated, p, nil)
	}

	w := NewWindowEntry(r.provider, h, pid, p.name)
	r.reg.add(p, w)
	r.emit(CategoryNewWindow, p, w)
	return p
}

// shown registers h without touching focus state
func (r *Reconciler) shown(h window.Handle) bool {
	if _, tracked := r.reg.hwnds[h]; tracked {
		return false
	}
	return r.checkWindow(h) != nil
}

func (r *Reconciler) destroyed(h window.Handle) bool {
	p, w, processGone := r.reg.remove(h)
	if p == nil {
		return false
	}

	if h == r.reg.lastActivated {
		r.emit(CategoryDeactivated, p, w)
		r.reg.lastActivated = 0
	}
	r.emit(CategoryClosedWindow, p, w)
	if processGone {
		r.emit(CategoryDestroyed, p, nil)
	}
	return true
}

func (r *Reconciler) gotFocus(h window.Handle) bool {
	p := r.checkWindow(h)
	if p == nil {
		return false
	}
	if h == r.reg.lastActivated {
		return false
	}

	delete(r.reg.flashing, h)
	if last := r.reg.lastActivated; last != 0 {
		if lp, lw, ok := r.reg.lookup(last); ok {
			r.emit(CategoryDeactivated, lp, lw)
		}
	}
	r.emit(CategoryActivated, p, p.windows[h])
	r.reg.lastActivated = h
	return true
}

func (r *Reconciler) titleChanged(h window.Handle) bool {
	p, w, ok := r.reg.lookup(h)
	if !ok {
		return false
	}
	before, now := w.refreshTitle()
	if before == now {
		return false
	}
	r.emit(CategoryTitleChanged, p, w)
	return true
}

func (r *Reconciler) flashed(h window.Handle) bool {
	p, w, ok := r.reg.lookup(h)
	if !ok {
		return false
	}
	if _, already := r.reg.flashing[h]; already {
		return false
	}
	r.reg.flashing[h] = struct{}{}
	r.emit(CategoryFlashed, p, w)
	return true
}

func (r *Reconciler) emit(c Category, p *ProcessEntry, w *WindowEntry) {
	ev := Event{
		Name:     EventName(c, p.name),
		Category: c,
		Process:  p.name,
		PID:      p.pid,
		Time:     r.now(),
	}
	if w != nil {
		info := w.Info()
		ev.Window = &info
	}
	r.stats.Events++
	r.log.Debug().Str("event", ev.Name).Msg("Emitting event")
	r.emitter.Emit(ev)
}
