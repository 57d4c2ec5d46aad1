package tracker

import (
	"sort"

	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// Registry holds the tracked processes and windows of one session.
// Every handle in hwnds is also present in its owner's windows map, and
// a ProcessEntry is removed as soon as its last window is.
type Registry struct {
	pids          map[window.PID]*ProcessEntry
	hwnds         map[window.Handle]*ProcessEntry
	flashing      map[window.Handle]struct{}
	lastActivated window.Handle
}

func newRegistry() *Registry {
	return &Registry{
		pids:     make(map[window.PID]*ProcessEntry),
		hwnds:    make(map[window.Handle]*ProcessEntry),
		flashing: make(map[window.Handle]struct{}),
	}
}

// lookup resolves a handle to its owning process and window entry
func (r *Registry) lookup(h window.Handle) (*ProcessEntry, *WindowEntry, bool) {
	p, ok := r.hwnds[h]
	if !ok {
		return nil, nil, false
	}
	w, ok := p.windows[h]
	if !ok {
		return nil, nil, false
	}
	return p, w, true
}

func (r *Registry) add(p *ProcessEntry, w *WindowEntry) {
	r.pids[p.pid] = p
	p.windows[w.handle] = w
	r.hwnds[w.handle] = p
}

// remove drops h from both maps. The returned flag is true when h was
// the process's last window and the process entry was removed too.
func (r *Registry) remove(h window.Handle) (p *ProcessEntry, w *WindowEntry, processGone bool) {
	p, w, ok := r.lookup(h)
	if !ok {
		return nil, nil, false
	}
	delete(p.windows, h)
	delete(r.hwnds, h)
	delete(r.flashing, h)
	if len(p.windows) == 0 {
		delete(r.pids, p.pid)
		processGone = true
	}
	return p, w, processGone
}

// findWindow returns the first window of a process named processName
// whose cached class is class.
func (r *Registry) findWindow(processName, class string) window.Handle {
	pids := make([]window.PID, 0, len(r.pids))
	for pid := range r.pids {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		p := r.pids[pid]
		if p.name != processName {
			continue
		}
		for _, w := range p.Windows() {
			if w.CachedClass() == class {
				return w.handle
			}
		}
	}
	return 0
}

// ProcessSnapshot is a read-only copy of a ProcessEntry
type ProcessSnapshot struct {
	PID     window.PID   `json:"pid" yaml:"pid"`
	Name    string       `json:"name" yaml:"name"`
	Windows []WindowInfo `json:"windows" yaml:"windows"`
}

// Snapshot is a read-only copy of the registry
type Snapshot struct {
	Processes     []ProcessSnapshot `json:"processes" yaml:"processes"`
	LastActivated window.Handle     `json:"last_activated,omitempty" yaml:"last_activated,omitempty"`
	Flashing      []window.Handle   `json:"flashing" yaml:"flashing"`
}

// WindowCount returns the number of windows across all processes
func (s Snapshot) WindowCount() int {
	n := 0
	for _, p := range s.Processes {
		n += len(p.Windows)
	}
	return n
}

// snapshot reports cached titles so that reading it never absorbs a
// pending title change
func (r *Registry) snapshot() Snapshot {
	s := Snapshot{
		Processes:     make([]ProcessSnapshot, 0, len(r.pids)),
		LastActivated: r.lastActivated,
		Flashing:      make([]window.Handle, 0, len(r.flashing)),
	}
	for _, p := range r.pids {
		ps := ProcessSnapshot{PID: p.pid, Name: p.name}
		for _, w := range p.Windows() {
			ps.Windows = append(ps.Windows, w.cachedInfo())
		}
		s.Processes = append(s.Processes, ps)
	}
	sort.Slice(s.Processes, func(i, j int) bool { return s.Processes[i].PID < s.Processes[j].PID })

	for h := range r.flashing {
		s.Flashing = append(s.Flashing, h)
	}
	sort.Slice(s.Flashing, func(i, j int) bool { return s.Flashing[i] < s.Flashing[j] })
	return s
}
