package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
	"github.com/bryanchriswhite/taskmonitor/internal/window/windowtest"
)

func newFake() *windowtest.Fake {
	fake := windowtest.New()
	fake.Add(windowtest.Window{
		Handle:  20,
		PID:     200,
		Title:   "Untitled - Notepad",
		Class:   "Notepad",
		Visible: true,
		Rect:    window.Rect{X: 100, Y: 50, Width: 400, Height: 300},
	})
	fake.Add(windowtest.Window{Handle: 21, PID: 200, Title: "Find", Visible: true, Parent: 20, Owner: 20})
	return fake
}

func open(t *testing.T, fake *windowtest.Fake, h window.Handle) *Window {
	t.Helper()
	w, err := New(fake, h)
	require.NoError(t, err)
	w.sleep = func(time.Duration) {}
	return w
}

func TestNewRejectsBadHandles(t *testing.T) {
	fake := newFake()

	_, err := New(fake, 0)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = New(fake, 99)
	assert.ErrorIs(t, err, ErrWindowNotFound)

	_, err = FromEntry(fake, nil)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestQueries(t *testing.T) {
	fake := newFake()
	fake.Active = 20
	w := open(t, fake, 20)

	assert.True(t, w.IsAlive())
	assert.True(t, w.IsActive())
	assert.True(t, w.IsVisible())
	assert.True(t, w.IsEnabled())
	assert.False(t, w.HasFocus())
	assert.Equal(t, "Untitled - Notepad", w.Title())
	assert.Equal(t, "Notepad", w.Class())

	r, err := w.Rect()
	require.NoError(t, err)
	assert.Equal(t, window.Rect{X: 100, Y: 50, Width: 400, Height: 300}, r)
	pos, err := w.Position()
	require.NoError(t, err)
	assert.Equal(t, window.Point{X: 100, Y: 50}, pos)
	size, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, window.Size{Width: 400, Height: 300}, size)
}

func TestChaining(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	got, err := w.SetPosition(window.Point{X: 1, Y: 2})
	require.NoError(t, err)
	got, err = got.SetSize(window.Size{Width: 3, Height: 4})
	require.NoError(t, err)
	got, err = got.Maximize()
	require.NoError(t, err)
	_, err = got.Focus()
	require.NoError(t, err)

	assert.Same(t, w, got)
	assert.Equal(t, []string{"position 20 1,2", "size 20 3x4", "maximize 20", "focus 20"}, fake.Calls())
	assert.True(t, w.HasFocus())
}

func TestSetRectAndBounds(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	_, err := w.SetRect(window.Rect{X: 5, Y: 6, Width: 7, Height: 8})
	require.NoError(t, err)
	_, err = w.SetBounds(window.Size{Width: 70, Height: 80}, window.Point{X: 50, Y: 60})
	require.NoError(t, err)

	r, err := w.Rect()
	require.NoError(t, err)
	assert.Equal(t, window.Rect{X: 50, Y: 60, Width: 70, Height: 80}, r)
}

func TestShowHideRestoreMinimize(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	_, err := w.Hide()
	require.NoError(t, err)
	assert.False(t, w.IsVisible())

	_, err = w.Show(window.ShowOptions{Activate: true})
	require.NoError(t, err)
	assert.True(t, w.IsVisible())
	assert.True(t, w.IsActive())

	_, err = w.Minimize(false, true)
	require.NoError(t, err)
	_, err = w.Restore(true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"hide 20",
		"show 20 activate=true default=false",
		"minimize 20 activate=false force=true",
		"restore 20 default=true",
	}, fake.Calls())
}

func TestFlashAndStop(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	_, err := w.Flash(window.FlashOptions{Tray: true, Mode: window.FlashContinuous})
	require.NoError(t, err)
	fw, _ := fake.Get(20)
	assert.True(t, fw.Flashing)

	_, err = w.StopFlash()
	require.NoError(t, err)
	fw, _ = fake.Get(20)
	assert.False(t, fw.Flashing)
	assert.Equal(t, []string{"flash 20 stop=false mode=2", "flash 20 stop=true mode=0"}, fake.Calls())
}

func TestInputOperations(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	_, err := w.EnableInput(false)
	require.NoError(t, err)
	assert.False(t, w.IsEnabled())

	_, err = w.SendKeys("{Ctrl+s}")
	require.NoError(t, err)
	_, err = w.BringToTop()
	require.NoError(t, err)

	assert.Equal(t, []string{"enable 20 false", `keys 20 "{Ctrl+s}"`, "raise 20"}, fake.Calls())
}

func TestParent(t *testing.T) {
	fake := newFake()

	child := open(t, fake, 21)
	parent, err := child.Parent()
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, window.Handle(20), parent.Handle())
	assert.Equal(t, "Notepad", parent.Class())

	top, err := parent.Parent()
	require.NoError(t, err)
	assert.Nil(t, top)
}

func TestCloseAndDestroy(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	_, err := w.Close()
	require.NoError(t, err)
	assert.True(t, w.IsAlive(), "graceful close leaves the window to the application")

	_, err = w.Destroy()
	require.NoError(t, err)
	assert.False(t, w.IsAlive())
}

func TestMessages(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	msg := window.Message{Type: "_NET_WM_PING", Data: [5]uint32{1}}
	_, err := w.SendMessage(msg)
	require.NoError(t, err)
	_, err = w.PostMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"send 20 _NET_WM_PING", "post 20 _NET_WM_PING"}, fake.Calls())
}

func TestDeadWindowKeepsCachedTitle(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)
	fake.Remove(20)

	_, err := w.Maximize()
	assert.ErrorIs(t, err, ErrWindowNotFound)
	_, err = w.Rect()
	assert.ErrorIs(t, err, ErrWindowNotFound)
	_, err = w.Parent()
	assert.ErrorIs(t, err, ErrWindowNotFound)

	assert.False(t, w.IsAlive())
	assert.Equal(t, "Untitled - Notepad", w.Title())
	assert.Equal(t, "Notepad", w.Class())
}

func TestResolveNamesProcess(t *testing.T) {
	fake := newFake()
	names := tracker.NameResolverFunc(func(pid window.PID) string {
		assert.Equal(t, window.PID(200), pid)
		return "notepad"
	})

	w, err := Resolve(fake, 20, names)
	require.NoError(t, err)
	assert.Equal(t, "notepad", w.Info().Name)

	w, err = New(fake, 20)
	require.NoError(t, err)
	assert.Empty(t, w.Info().Name)

	_, err = Resolve(fake, 99, names)
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestFromEntrySharesCache(t *testing.T) {
	fake := newFake()
	entry := tracker.NewWindowEntry(fake, 20, 200, "notepad")
	w, err := FromEntry(fake, entry)
	require.NoError(t, err)

	fake.Update(20, func(fw *windowtest.Window) { fw.Title = "notes.txt - Notepad" })
	assert.Equal(t, "notes.txt - Notepad", w.Title())
	assert.Equal(t, "notes.txt - Notepad", entry.CachedTitle())
	assert.Equal(t, "notepad", w.Info().Name)
}
