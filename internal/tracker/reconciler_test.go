package tracker

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bryanchriswhite/taskmonitor/internal/window"
	"github.com/bryanchriswhite/taskmonitor/internal/window/windowtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

var processNames = NameResolverFunc(func(pid window.PID) string {
	switch pid {
	case 100:
		return "explorer"
	case 200:
		return "notepad"
	case 300:
		return "firefox"
	default:
		return fmt.Sprintf("proc%d", pid)
	}
})

func newTestReconciler(t *testing.T, fake *windowtest.Fake) (*Reconciler, *recorder) {
	t.Helper()
	rec := &recorder{}
	r, err := New(Options{
		Provider: fake,
		Source:   fake,
		Names:    processNames,
		Emitter:  rec,
	})
	require.NoError(t, err)
	return r, rec
}

func openTestReconciler(t *testing.T, fake *windowtest.Fake) (*Reconciler, *recorder) {
	t.Helper()
	r, rec := newTestReconciler(t, fake)
	require.NoError(t, r.Open())
	t.Cleanup(func() { _ = r.Close() })
	return r, rec
}

func notepad(h window.Handle) windowtest.Window {
	return windowtest.Window{Handle: h, PID: 200, Title: "Untitled - Notepad", Class: "Notepad", Visible: true}
}

func TestNewRequiresCollaborators(t *testing.T) {
	fake := windowtest.New()

	_, err := New(Options{Source: fake, Names: processNames})
	assert.Error(t, err)
	_, err = New(Options{Provider: fake, Names: processNames})
	assert.Error(t, err)
	_, err = New(Options{Provider: fake, Source: fake})
	assert.Error(t, err)

	r, err := New(Options{Provider: fake, Source: fake, Names: processNames})
	require.NoError(t, err)
	assert.False(t, r.IsOpen())
}

func TestStartupEnumeration(t *testing.T) {
	fake := windowtest.New()
	fake.Add(windowtest.Window{Handle: 10, PID: 100, Title: "Taskbar", Class: "Shell_TrayWnd", Visible: true})

	r, rec := openTestReconciler(t, fake)

	snap, ok := r.Snapshot()
	require.True(t, ok)
	require.Len(t, snap.Processes, 1)
	assert.Equal(t, window.PID(100), snap.Processes[0].PID)
	assert.Equal(t, "explorer", snap.Processes[0].Name)
	require.Len(t, snap.Processes[0].Windows, 1)
	assert.Equal(t, "Taskbar", snap.Processes[0].Windows[0].Title)
	assert.Empty(t, rec.names(), "enumeration must not emit events")

	_, tray := r.ShellWindows()
	assert.Equal(t, window.Handle(10), tray)
}

func TestStartupEnumerationSkipsIneligibleWindows(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	fake.Add(windowtest.Window{Handle: 21, PID: 200, Visible: false})
	fake.Add(windowtest.Window{Handle: 22, PID: 200, Visible: true, Owner: 20})
	fake.Add(windowtest.Window{Handle: 23, PID: 200, Visible: true, Ancestor: 20})

	r, _ := openTestReconciler(t, fake)

	snap, _ := r.Snapshot()
	require.Len(t, snap.Processes, 1)
	require.Len(t, snap.Processes[0].Windows, 1)
	assert.Equal(t, window.Handle(20), snap.Processes[0].Windows[0].Handle)
}

func TestTrayFallsBackToProvider(t *testing.T) {
	fake := windowtest.New()
	fake.Tray = 99
	fake.Add(notepad(20))

	r, _ := openTestReconciler(t, fake)

	root, tray := r.ShellWindows()
	assert.Equal(t, window.Handle(1), root)
	assert.Equal(t, window.Handle(99), tray)
}

func TestCreatedNotificationForNewProcess(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)

	fake.Add(notepad(20))
	fake.Notify(window.Notification{Kind: window.KindCreated, Handle: 20})

	assert.Equal(t, []string{"Created.notepad", "NewWindow.notepad", "Activated.notepad"}, rec.names())

	snap, _ := r.Snapshot()
	require.Len(t, snap.Processes, 1)
	assert.Equal(t, window.PID(200), snap.Processes[0].PID)
	assert.Len(t, snap.Processes[0].Windows, 1)
}

func TestShownNotificationRegistersWithoutActivating(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)

	fake.Add(notepad(20))
	fake.Notify(window.Notification{Kind: window.KindShown, Handle: 20})
	fake.Notify(window.Notification{Kind: window.KindShown, Handle: 20})

	assert.Equal(t, []string{"Created.notepad", "NewWindow.notepad"}, rec.names())
	assert.Equal(t, window.Handle(0), r.LastActivated())

	snap, _ := r.Snapshot()
	require.Len(t, snap.Processes, 1)
	assert.Equal(t, window.PID(200), snap.Processes[0].PID)
	assert.Len(t, snap.Processes[0].Windows, 1)
	assert.Equal(t, uint64(1), r.Stats().Ignored)
}

func TestCheckWindowRegistersOnce(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)
	fake.Add(notepad(20))

	first := r.CheckWindow(20)
	require.NotNil(t, first)
	assert.Equal(t, []string{"Created.notepad", "NewWindow.notepad"}, rec.names())

	second := r.CheckWindow(20)
	assert.Same(t, first, second)
	assert.Equal(t, []string{"Created.notepad", "NewWindow.notepad"}, rec.names())

	snap, _ := r.Snapshot()
	assert.Equal(t, 1, snap.WindowCount())
}

func TestSecondWindowOfKnownProcess(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Add(notepad(21))
	require.NotNil(t, r.CheckWindow(21))

	assert.Equal(t, []string{"NewWindow.notepad"}, rec.names())
	payload := rec.last().Window
	require.NotNil(t, payload)
	assert.Equal(t, window.Handle(21), payload.Handle)
	assert.Equal(t, "notepad", payload.Name)
	assert.Equal(t, "Untitled - Notepad", payload.Title)
	assert.Equal(t, "Notepad", payload.WindowClass)
}

func TestCreatedEventHasNoPayload(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)
	fake.Add(notepad(20))

	r.CheckWindow(20)

	require.Len(t, rec.events, 2)
	assert.Nil(t, rec.events[0].Window)
	assert.Equal(t, CategoryCreated, rec.events[0].Category)
	assert.NotNil(t, rec.events[1].Window)
}

func TestDestroyActivatedLastWindow(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)
	fake.Add(notepad(20))
	r.GotFocus(20)
	require.Equal(t, window.Handle(20), r.LastActivated())
	rec.reset()

	fake.Remove(20)
	fake.Notify(window.Notification{Kind: window.KindDestroyed, Handle: 20})

	assert.Equal(t, []string{"Deactivated.notepad", "ClosedWindow.notepad", "Destroyed.notepad"}, rec.names())
	assert.Equal(t, window.Handle(0), r.LastActivated())

	snap, _ := r.Snapshot()
	assert.Empty(t, snap.Processes)
	_, tracked := r.Lookup(20)
	assert.False(t, tracked)
}

func TestDestroyPayloadUsesCachedValues(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Remove(20)
	r.Destroyed(20)

	ev := rec.last()
	assert.Equal(t, "Destroyed.notepad", ev.Name)
	closed := rec.events[0]
	require.NotNil(t, closed.Window)
	assert.Equal(t, "Untitled - Notepad", closed.Window.Title)
	assert.Equal(t, "Notepad", closed.Window.WindowClass)
}

func TestDestroyOneOfTwoWindowsKeepsProcess(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	fake.Add(notepad(21))
	r, rec := openTestReconciler(t, fake)

	r.Destroyed(21)

	assert.Equal(t, []string{"ClosedWindow.notepad"}, rec.names())
	snap, _ := r.Snapshot()
	require.Len(t, snap.Processes, 1)
	assert.Len(t, snap.Processes[0].Windows, 1)
}

func TestDestroyUntrackedIsNoop(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)

	r.Destroyed(12345)
	r.Destroyed(0)

	assert.Empty(t, rec.names())
	assert.Equal(t, uint64(2), r.Stats().Ignored)
}

func TestFocusSwitchOrdering(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	fake.Add(windowtest.Window{Handle: 30, PID: 300, Title: "Mozilla Firefox", Class: "firefox", Visible: true})
	r, rec := openTestReconciler(t, fake)

	r.GotFocus(20)
	r.Flashed(30)
	rec.reset()

	r.GotFocus(30)

	assert.Equal(t, []string{"Deactivated.notepad", "Activated.firefox"}, rec.names())
	assert.Equal(t, window.Handle(30), r.LastActivated())
	snap, _ := r.Snapshot()
	assert.Empty(t, snap.Flashing)
}

func TestRepeatedFocusIsNoop(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	r.GotFocus(20)
	r.GotFocus(20)
	fake.Notify(window.Notification{Kind: window.KindActivatedOther, Handle: 20})

	assert.Equal(t, []string{"Activated.notepad"}, rec.names())
}

func TestFocusOnIneligibleWindowIsNoop(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)
	r.GotFocus(20)
	rec.reset()

	fake.Add(windowtest.Window{Handle: 40, PID: 200, Visible: true, Owner: 20})
	r.GotFocus(40)

	assert.Empty(t, rec.names())
	assert.Equal(t, window.Handle(20), r.LastActivated())
}

func TestFlashDedup(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Notify(window.Notification{Kind: window.KindFlashed, Handle: 20})
	fake.Notify(window.Notification{Kind: window.KindFlashed, Handle: 20})

	assert.Equal(t, []string{"Flashed.notepad"}, rec.names())
	snap, _ := r.Snapshot()
	assert.Equal(t, []window.Handle{20}, snap.Flashing)

	r.GotFocus(20)
	assert.Equal(t, []string{"Flashed.notepad", "Activated.notepad"}, rec.names())
	snap, _ = r.Snapshot()
	assert.Empty(t, snap.Flashing)

	r.Flashed(20)
	assert.Equal(t, "Flashed.notepad", rec.last().Name)
}

func TestFlashUntrackedIsNoop(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Add(notepad(21))
	r.Flashed(21)

	assert.Empty(t, rec.names())
	_, tracked := r.Lookup(21)
	assert.False(t, tracked, "flash must not register windows")
}

func TestTitleChanged(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	r.TitleChanged(20)
	assert.Empty(t, rec.names(), "unchanged title")

	fake.Update(20, func(w *windowtest.Window) { w.Title = "notes.txt - Notepad" })
	r.TitleChanged(20)
	require.Equal(t, []string{"TitleChanged.notepad"}, rec.names())
	assert.Equal(t, "notes.txt - Notepad", rec.last().Window.Title)

	r.TitleChanged(20)
	assert.Len(t, rec.names(), 1, "cache refreshed by the first read")
}

func TestSnapshotKeepsPendingTitleChange(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Update(20, func(w *windowtest.Window) { w.Title = "notes.txt - Notepad" })
	snap, ok := r.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "Untitled - Notepad", snap.Processes[0].Windows[0].Title)

	r.TitleChanged(20)
	require.Equal(t, []string{"TitleChanged.notepad"}, rec.names())

	snap, _ = r.Snapshot()
	assert.Equal(t, "notes.txt - Notepad", snap.Processes[0].Windows[0].Title)
}

func TestTitleCacheNeverRegresses(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Update(20, func(w *windowtest.Window) { w.Title = "" })
	r.TitleChanged(20)
	assert.Empty(t, rec.names())

	w, ok := r.Lookup(20)
	require.True(t, ok)
	assert.Equal(t, "Untitled - Notepad", w.CachedTitle())
	assert.Equal(t, "Untitled - Notepad", w.Title())
}

func TestEligibilityFilter(t *testing.T) {
	fake := windowtest.New()
	fake.Tray = 50
	r, rec := openTestReconciler(t, fake)

	fake.Add(windowtest.Window{Handle: 41, PID: 200, Visible: true, Owner: 7})
	fake.Add(windowtest.Window{Handle: 42, PID: 200, Visible: false})
	fake.Add(windowtest.Window{Handle: 43, PID: 200, Visible: true, Ancestor: 1})
	fake.Add(windowtest.Window{Handle: 44, PID: 200, Visible: true, Ancestor: 50})
	fake.Add(windowtest.Window{Handle: 50, PID: 100, Visible: true, Class: "Shell_TrayWnd"})
	fake.Add(windowtest.Window{Handle: 45, PID: 200, Visible: true, Ancestor: 60})

	for _, h := range []window.Handle{0, 41, 42, 43, 44, 45, 50, 1} {
		for _, kind := range []window.Kind{window.KindCreated, window.KindShown, window.KindActivated, window.KindFlashed, window.KindRedraw, window.KindDestroyed} {
			fake.Notify(window.Notification{Kind: kind, Handle: h})
		}
		assert.Nil(t, r.CheckWindow(h), "hwnd %d", h)
	}

	assert.Empty(t, rec.names())
	snap, _ := r.Snapshot()
	assert.Empty(t, snap.Processes)
}

func TestUnrecognizedNotification(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := openTestReconciler(t, fake)

	fake.Notify(window.Notification{Kind: window.KindUnknown, Handle: 20, Code: 0x0035})

	assert.Empty(t, rec.names())
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Notifications)
	assert.Equal(t, uint64(1), stats.Unrecognized)
}

func TestShellHookCodes(t *testing.T) {
	fake := windowtest.New()
	_, rec := openTestReconciler(t, fake)
	fake.Add(notepad(20))

	for _, code := range []uint32{window.ShellHookWindowCreated, window.ShellHookFlash, window.ShellHookRedraw, window.ShellHookWindowDestroyed} {
		fake.Notify(window.Notification{Kind: window.ShellHookKind(code), Handle: 20, Code: code})
	}

	assert.Equal(t, []string{
		"Created.notepad",
		"NewWindow.notepad",
		"Activated.notepad",
		"Flashed.notepad",
		"Deactivated.notepad",
		"ClosedWindow.notepad",
		"Destroyed.notepad",
	}, rec.names())
	assert.Equal(t, window.KindUnknown, window.ShellHookKind(0x35))
	assert.Equal(t, window.KindActivatedOther, window.ShellHookKind(0x8004))
}

func TestSubscriptionFailureRollsBack(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	fake.SubscribeErr = errors.New("no shell hook")
	r, rec := newTestReconciler(t, fake)

	err := r.Open()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscription)
	assert.False(t, r.IsOpen())
	assert.False(t, fake.Subscribed())
	assert.GreaterOrEqual(t, fake.Unsubscribes, 1)

	_, ok := r.Snapshot()
	assert.False(t, ok)
	assert.NoError(t, r.Close())
	assert.Empty(t, rec.names())
}

func TestEnumerationFailure(t *testing.T) {
	fake := windowtest.New()
	fake.EnumerateErr = errors.New("display gone")
	r, _ := newTestReconciler(t, fake)

	err := r.Open()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSubscription)
	assert.False(t, fake.Subscribed())
	assert.False(t, r.IsOpen())
}

func TestOpenTwice(t *testing.T) {
	fake := windowtest.New()
	r, _ := openTestReconciler(t, fake)
	assert.ErrorIs(t, r.Open(), ErrAlreadyOpen)
}

func TestCloseStopsEvents(t *testing.T) {
	fake := windowtest.New()
	fake.Add(notepad(20))
	r, rec := newTestReconciler(t, fake)
	require.NoError(t, r.Open())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.False(t, fake.Subscribed())

	r.Handle(window.Notification{Kind: window.KindActivated, Handle: 20})
	r.Destroyed(20)
	assert.Empty(t, rec.names())
	assert.Nil(t, r.CheckWindow(20))

	require.NoError(t, r.Open(), "reopen builds a fresh registry")
	snap, ok := r.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.WindowCount())
	require.NoError(t, r.Close())
}

func TestConcurrentNotificationsKeepRegistryConsistent(t *testing.T) {
	fake := windowtest.New()
	r, rec := openTestReconciler(t, fake)
	for h := window.Handle(100); h < 140; h++ {
		fake.Add(windowtest.Window{Handle: h, PID: window.PID(h % 4), Visible: true, Title: "w"})
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := window.Handle(100); h < 140; h++ {
				r.GotFocus(h)
				r.Flashed(h)
			}
		}()
	}
	wg.Wait()

	snap, _ := r.Snapshot()
	assert.Equal(t, 40, snap.WindowCount())
	assert.Len(t, snap.Processes, 4)

	newWindows := 0
	for _, name := range rec.names() {
		if len(name) > 10 && name[:10] == "NewWindow." {
			newWindows++
		}
	}
	assert.Equal(t, 40, newWindows)

	for h := window.Handle(100); h < 140; h++ {
		r.Destroyed(h)
	}
	snap, _ = r.Snapshot()
	assert.Empty(t, snap.Processes)
	assert.Equal(t, window.Handle(0), snap.LastActivated)
}
