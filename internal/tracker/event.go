package tracker

import (
	"time"

	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// Category is the first segment of an event name
type Category string

const (
	CategoryCreated      Category = "Created"
	CategoryDestroyed    Category = "Destroyed"
	CategoryNewWindow    Category = "NewWindow"
	CategoryClosedWindow Category = "ClosedWindow"
	CategoryActivated    Category = "Activated"
	CategoryDeactivated  Category = "Deactivated"
	CategoryFlashed      Category = "Flashed"
	CategoryTitleChanged Category = "TitleChanged"
)

// Categories lists every event category in documentation order
var Categories = []Category{
	CategoryCreated,
	CategoryDestroyed,
	CategoryNewWindow,
	CategoryClosedWindow,
	CategoryActivated,
	CategoryDeactivated,
	CategoryFlashed,
	CategoryTitleChanged,
}

// EventName builds "<Category>.<ProcessName>"
func EventName(c Category, processName string) string {
	return string(c) + "." + processName
}

// Event is one semantic lifecycle transition.
// Window is nil for Created and Destroyed.
type Event struct {
	Name     string      `json:"name"`
	Category Category    `json:"category"`
	Process  string      `json:"process"`
	PID      window.PID  `json:"pid"`
	Window   *WindowInfo `json:"payload,omitempty"`
	Time     time.Time   `json:"time"`
}

// Emitter receives events in emission order. Emit is called while the
// registry is locked and must not call back into the Reconciler.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(ev Event)

// Emit implements Emitter
func (f EmitterFunc) Emit(ev Event) { f(ev) }
