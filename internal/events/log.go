package events

import (
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

// LogEmitter writes each event to the structured log
type LogEmitter struct {
	log    *zerolog.Logger
	prefix string
}

// NewLogEmitter logs events under the "events" component
func NewLogEmitter(prefix string) *LogEmitter {
	return &LogEmitter{log: logger.WithComponent("events"), prefix: prefix}
}

// Emit implements tracker.Emitter
func (e *LogEmitter) Emit(ev tracker.Event) {
	entry := e.log.Info().
		Str("event", Qualified(e.prefix, ev.Name)).
		Int("pid", int(ev.PID))
	if ev.Window != nil {
		entry = entry.
			Uint64("hwnd", uint64(ev.Window.Handle)).
			Str("title", ev.Window.Title).
			Str("class", ev.Window.WindowClass)
	}
	entry.Msg("Event")
}
