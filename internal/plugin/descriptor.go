package plugin

import (
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

// Descriptor identifies the plugin and the events it generates
type Descriptor struct {
	Name        string       `json:"name" yaml:"name"`
	Prefix      string       `json:"prefix" yaml:"prefix"`
	Version     string       `json:"version" yaml:"version"`
	GUID        string       `json:"guid" yaml:"guid"`
	URL         string       `json:"url" yaml:"url"`
	Authors     []string     `json:"authors" yaml:"authors"`
	Description string       `json:"description" yaml:"description"`
	Events      []EventDoc   `json:"events" yaml:"events"`
	Payload     []PayloadDoc `json:"payload" yaml:"payload"`
}

// EventDoc documents one event category
type EventDoc struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	HasPayload  bool   `json:"has_payload" yaml:"has_payload"`
}

// PayloadDoc documents one payload field
type PayloadDoc struct {
	Field       string `json:"field" yaml:"field"`
	Description string `json:"description" yaml:"description"`
}

// DefaultPrefix is the event prefix used by outward emitters
const DefaultPrefix = "TaskMonitorPlus"

var eventDescriptions = map[tracker.Category]string{
	tracker.CategoryCreated:      "new process",
	tracker.CategoryDestroyed:    "process ended",
	tracker.CategoryNewWindow:    "new window",
	tracker.CategoryClosedWindow: "closed window",
	tracker.CategoryActivated:    "window activated (selected)",
	tracker.CategoryDeactivated:  "window deactivated",
	tracker.CategoryFlashed:      "window flashed",
	tracker.CategoryTitleChanged: "window title changed",
}

// TaskMonitorPlus returns the descriptor with the given event prefix;
// an empty prefix uses DefaultPrefix.
func TaskMonitorPlus(prefix string) Descriptor {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	d := Descriptor{
		Name:    "Task Monitor Plus",
		Prefix:  prefix,
		Version: "0.0.3",
		GUID:    "{4826ED71-64DE-496A-84A4-955402DEC3BC}",
		URL:     "https://github.com/Boolean263/EventGhost-TaskMonitorPlus",
		Authors: []string{"Bitmonster", "blackwind", "Boolean263", "kgschlosser"},
		Description: "Generates events when an application starts, exits, flashes the " +
			"taskbar, or gets switched into focus. Events carry a payload with " +
			"information about the window that generated them.",
		Payload: []PayloadDoc{
			{Field: "title", Description: "window title"},
			{Field: "window_class", Description: "window class"},
			{Field: "hwnd", Description: "unique identifier of the window"},
			{Field: "pid", Description: "process ID of the owning process"},
			{Field: "name", Description: "executable name, as in the event"},
		},
	}
	for _, c := range tracker.Categories {
		d.Events = append(d.Events, EventDoc{
			Name:        prefix + "." + string(c) + ".<ExeName>",
			Description: eventDescriptions[c],
			HasPayload:  c != tracker.CategoryCreated && c != tracker.CategoryDestroyed,
		})
	}
	return d
}
