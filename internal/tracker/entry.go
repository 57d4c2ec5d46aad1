package tracker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// NameResolver maps a process id to its executable name without extension
type NameResolver interface {
	ProcessName(pid window.PID) string
}

// NameResolverFunc adapts a function to NameResolver
type NameResolverFunc func(pid window.PID) string

// ProcessName implements NameResolver
func (f NameResolverFunc) ProcessName(pid window.PID) string { return f(pid) }

// ProcessEntry is a tracked process and its open windows
type ProcessEntry struct {
	pid     window.PID
	name    string
	windows map[window.Handle]*WindowEntry
}

func newProcessEntry(pid window.PID, name string) *ProcessEntry {
	return &ProcessEntry{
		pid:     pid,
		name:    name,
		windows: make(map[window.Handle]*WindowEntry),
	}
}

// PID returns the process id
func (p *ProcessEntry) PID() window.PID { return p.pid }

// Name returns the executable name resolved when the entry was created
func (p *ProcessEntry) Name() string { return p.name }

func (p *ProcessEntry) String() string { return p.name }

// Window returns the tracked window with the given handle
func (p *ProcessEntry) Window(h window.Handle) (*WindowEntry, bool) {
	w, ok := p.windows[h]
	return w, ok
}

// Windows returns the process windows ordered by handle
func (p *ProcessEntry) Windows() []*WindowEntry {
	out := make([]*WindowEntry, 0, len(p.windows))
	for _, w := range p.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

// WindowInfo is the event payload and JSON form of a window
type WindowInfo struct {
	Title       string        `json:"title" yaml:"title"`
	WindowClass string        `json:"window_class" yaml:"window_class"`
	Handle      window.Handle `json:"hwnd" yaml:"hwnd"`
	PID         window.PID    `json:"pid" yaml:"pid"`
	Name        string        `json:"name" yaml:"name"`
}

func (i WindowInfo) String() string {
	return fmt.Sprintf("<title=%q, window_class=%q,...>", i.Title, i.WindowClass)
}

// WindowEntry is a tracked window. Title and class are read live from
// the provider; the last non-empty values are cached so a window that is
// already gone still reports what it was.
type WindowEntry struct {
	handle      window.Handle
	pid         window.PID
	processName string
	provider    window.SnapshotProvider

	mu          sync.Mutex
	cachedTitle string
	cachedClass string
}

// NewWindowEntry creates an entry for h, priming the title/class cache
func NewWindowEntry(provider window.SnapshotProvider, h window.Handle, pid window.PID, processName string) *WindowEntry {
	return &WindowEntry{
		handle:      h,
		pid:         pid,
		processName: processName,
		provider:    provider,
		cachedTitle: provider.WindowText(h),
		cachedClass: provider.ClassName(h),
	}
}

// Handle returns the window handle
func (w *WindowEntry) Handle() window.Handle { return w.handle }

// PID returns the owning process id
func (w *WindowEntry) PID() window.PID { return w.pid }

// ProcessName returns the owning process name
func (w *WindowEntry) ProcessName() string { return w.processName }

// Title returns the live title, falling back to the cached one
func (w *WindowEntry) Title() string {
	_, now := w.refreshTitle()
	return now
}

// Class returns the live window class, falling back to the cached one
func (w *WindowEntry) Class() string {
	live := w.provider.ClassName(w.handle)

	w.mu.Lock()
	defer w.mu.Unlock()
	if live != "" {
		w.cachedClass = live
	}
	return w.cachedClass
}

// CachedTitle returns the cached title without querying the window
func (w *WindowEntry) CachedTitle() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cachedTitle
}

// CachedClass returns the cached class without querying the window
func (w *WindowEntry) CachedClass() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cachedClass
}

// refreshTitle reads the live title and returns the cache as it was
// before the read together with the resulting title.
func (w *WindowEntry) refreshTitle() (before, now string) {
	live := w.provider.WindowText(w.handle)

	w.mu.Lock()
	defer w.mu.Unlock()
	before = w.cachedTitle
	if live != "" {
		w.cachedTitle = live
	}
	return before, w.cachedTitle
}

// Info returns a snapshot of the window for payloads
func (w *WindowEntry) Info() WindowInfo {
	return WindowInfo{
		Title:       w.Title(),
		WindowClass: w.Class(),
		Handle:      w.handle,
		PID:         w.pid,
		Name:        w.processName,
	}
}

// cachedInfo is Info without querying the provider
func (w *WindowEntry) cachedInfo() WindowInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowInfo{
		Title:       w.cachedTitle,
		WindowClass: w.cachedClass,
		Handle:      w.handle,
		PID:         w.pid,
		Name:        w.processName,
	}
}

func (w *WindowEntry) String() string {
	return w.Info().String()
}
