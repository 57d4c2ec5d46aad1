package events

import (
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

// D-Bus defaults
const (
	DefaultDBusPath      = "/io/github/taskmonitor/TaskMonitor"
	DefaultDBusInterface = "io.github.taskmonitor.TaskMonitor"
)

// SignalConn is the part of *dbus.Conn used to emit signals
type SignalConn interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// DBusEmitter broadcasts every event as an "Event" signal carrying the
// qualified name, the category, the process name, the pid and the
// window payload as JSON ("" for Created/Destroyed).
type DBusEmitter struct {
	conn   SignalConn
	path   dbus.ObjectPath
	iface  string
	prefix string
	log    *zerolog.Logger
}

// NewDBusEmitter validates the object path and interface name
func NewDBusEmitter(conn SignalConn, path, iface, prefix string) (*DBusEmitter, error) {
	if path == "" {
		path = DefaultDBusPath
	}
	if iface == "" {
		iface = DefaultDBusInterface
	}
	objectPath := dbus.ObjectPath(path)
	if !objectPath.IsValid() {
		return nil, fmt.Errorf("invalid D-Bus object path %q", path)
	}

	return &DBusEmitter{
		conn:   conn,
		path:   objectPath,
		iface:  iface,
		prefix: prefix,
		log:    logger.WithComponent("dbus"),
	}, nil
}

// Signal returns the fully qualified signal name
func (e *DBusEmitter) Signal() string {
	return e.iface + ".Event"
}

// Emit implements tracker.Emitter. Bus errors are logged, never returned.
func (e *DBusEmitter) Emit(ev tracker.Event) {
	payload := ""
	if ev.Window != nil {
		data, err := json.Marshal(ev.Window)
		if err != nil {
			e.log.Error().Err(err).Str("event", ev.Name).Msg("Failed to encode payload")
			return
		}
		payload = string(data)
	}

	err := e.conn.Emit(e.path, e.Signal(),
		Qualified(e.prefix, ev.Name),
		string(ev.Category),
		ev.Process,
		uint32(ev.PID),
		payload,
	)
	if err != nil {
		e.log.Warn().Err(err).Str("event", ev.Name).Msg("Failed to emit D-Bus signal")
	}
}

// SnapshotFunc returns the current registry, false when tracking stopped
type SnapshotFunc func() (tracker.Snapshot, bool)

type dbusObject struct {
	snapshot SnapshotFunc
}

// Snapshot is the exported D-Bus method returning the registry as JSON
func (o *dbusObject) Snapshot() (string, *dbus.Error) {
	snap, ok := o.snapshot()
	if !ok {
		return "", dbus.MakeFailedError(fmt.Errorf("tracking is not running"))
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// ExportSnapshot publishes a Snapshot method on the emitter's object path
// and interface
func ExportSnapshot(conn *dbus.Conn, path, iface string, fn SnapshotFunc) error {
	if path == "" {
		path = DefaultDBusPath
	}
	if iface == "" {
		iface = DefaultDBusInterface
	}
	if err := conn.Export(&dbusObject{snapshot: fn}, dbus.ObjectPath(path), iface); err != nil {
		return fmt.Errorf("failed to export D-Bus object: %w", err)
	}
	return nil
}
