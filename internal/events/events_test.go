package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

func activated() tracker.Event {
	return tracker.Event{
		Name:     "Activated.firefox",
		Category: tracker.CategoryActivated,
		Process:  "firefox",
		PID:      300,
		Window:   &tracker.WindowInfo{Title: "Mozilla Firefox", WindowClass: "firefox", Handle: 30, PID: 300, Name: "firefox"},
	}
}

func TestQualified(t *testing.T) {
	assert.Equal(t, "Created.x", Qualified("", "Created.x"))
	assert.Equal(t, "TaskMonitorPlus.Created.x", Qualified("TaskMonitorPlus", "Created.x"))
}

func TestHubDelivers(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Emit(activated())

	assert.Equal(t, "Activated.firefox", (<-a).Name)
	assert.Equal(t, "Activated.firefox", (<-b).Name)
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(1)
	ch := hub.Subscribe()

	hub.Emit(activated())
	hub.Emit(activated())
	hub.Emit(activated())

	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(2), hub.Dropped())
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(0)
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())

	hub.Emit(activated())
	hub.Unsubscribe(ch)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(0)
	ch := hub.Subscribe()
	hub.Close()

	_, open := <-ch
	assert.False(t, open)

	late := hub.Subscribe()
	_, open = <-late
	assert.False(t, open)
	hub.Emit(activated())
}

func TestMultiPreservesOrder(t *testing.T) {
	var got []string
	record := func(tag string) tracker.Emitter {
		return tracker.EmitterFunc(func(ev tracker.Event) { got = append(got, tag+":"+ev.Name) })
	}

	Multi{record("a"), record("b")}.Emit(activated())

	assert.Equal(t, []string{"a:Activated.firefox", "b:Activated.firefox"}, got)
}

type signal struct {
	path   dbus.ObjectPath
	name   string
	values []interface{}
}

type fakeBus struct {
	signals []signal
	err     error
}

func (f *fakeBus) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	f.signals = append(f.signals, signal{path: path, name: name, values: values})
	return f.err
}

func TestDBusEmitter(t *testing.T) {
	bus := &fakeBus{}
	e, err := NewDBusEmitter(bus, "", "", "TaskMonitorPlus")
	require.NoError(t, err)
	assert.Equal(t, DefaultDBusInterface+".Event", e.Signal())

	e.Emit(activated())
	e.Emit(tracker.Event{Name: "Destroyed.firefox", Category: tracker.CategoryDestroyed, Process: "firefox", PID: 300})

	require.Len(t, bus.signals, 2)
	first := bus.signals[0]
	assert.Equal(t, dbus.ObjectPath(DefaultDBusPath), first.path)
	assert.Equal(t, "io.github.taskmonitor.TaskMonitor.Event", first.name)
	require.Len(t, first.values, 5)
	assert.Equal(t, "TaskMonitorPlus.Activated.firefox", first.values[0])
	assert.Equal(t, "Activated", first.values[1])
	assert.Equal(t, "firefox", first.values[2])
	assert.Equal(t, uint32(300), first.values[3])
	assert.JSONEq(t, `{"title":"Mozilla Firefox","window_class":"firefox","hwnd":30,"pid":300,"name":"firefox"}`, first.values[4].(string))

	assert.Equal(t, "", bus.signals[1].values[4])
}

func TestDBusEmitterSwallowsBusErrors(t *testing.T) {
	bus := &fakeBus{err: errors.New("disconnected")}
	e, err := NewDBusEmitter(bus, "/a/b", "a.b", "")
	require.NoError(t, err)

	assert.NotPanics(t, func() { e.Emit(activated()) })
	assert.Equal(t, "Activated.firefox", bus.signals[0].values[0])
}

func TestDBusEmitterRejectsBadPath(t *testing.T) {
	_, err := NewDBusEmitter(&fakeBus{}, "not/a/path", "", "")
	assert.Error(t, err)
}

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(&bytes.Buffer{})

	NewLogEmitter("TaskMonitorPlus").Emit(activated())

	out := buf.String()
	assert.Contains(t, out, `"event":"TaskMonitorPlus.Activated.firefox"`)
	assert.Contains(t, out, `"title":"Mozilla Firefox"`)
	assert.Contains(t, out, `"component":"events"`)
}
