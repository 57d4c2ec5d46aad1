package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

func TestInvokeQuery(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	res, err := Invoke(w, Request{Action: "is_visible"})
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
	assert.Equal(t, window.Handle(20), res.Window.Handle)

	res, err = Invoke(w, Request{Action: "rect"})
	require.NoError(t, err)
	assert.Equal(t, window.Rect{X: 100, Y: 50, Width: 400, Height: 300}, res.Value)

	res, err = Invoke(w, Request{Action: "title"})
	require.NoError(t, err)
	assert.Equal(t, "Untitled - Notepad", res.Value)
}

func TestInvokeCommands(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)
	enable := false

	requests := []Request{
		{Action: "set_rect", Size: &window.Size{Width: 10, Height: 20}, Position: &window.Point{X: 1, Y: 2}},
		{Action: "show", Activate: true},
		{Action: "enable_input", Enable: &enable},
		{Action: "flash", Flash: &FlashRequest{Caption: true, Mode: "until_active"}},
		{Action: "send_keys", Keys: "hello"},
		{Action: "post_message", Message: &window.Message{Type: "WM_PROTOCOLS"}},
	}
	for _, req := range requests {
		res, err := Invoke(w, req)
		require.NoError(t, err, req.Action)
		assert.Nil(t, res.Value, req.Action)
	}

	assert.Equal(t, []string{
		"position 20 1,2",
		"size 20 10x20",
		"show 20 activate=true default=false",
		"enable 20 false",
		"flash 20 stop=false mode=1",
		`keys 20 "hello"`,
		"post 20 WM_PROTOCOLS",
	}, fake.Calls())
}

func TestInvokeParent(t *testing.T) {
	fake := newFake()

	res, err := Invoke(open(t, fake, 21), Request{Action: "parent"})
	require.NoError(t, err)
	parent, ok := res.Value.(tracker.WindowInfo)
	require.True(t, ok)
	assert.Equal(t, window.Handle(20), parent.Handle)
	assert.Equal(t, "Untitled - Notepad", parent.Title)

	res, err = Invoke(open(t, fake, 20), Request{Action: "parent"})
	require.NoError(t, err)
	assert.Nil(t, res.Value)
}

func TestInvokeErrors(t *testing.T) {
	fake := newFake()
	w := open(t, fake, 20)

	_, err := Invoke(w, Request{Action: "explode"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	for _, action := range []string{"set_position", "set_size", "set_rect", "flash", "send_keys", "enable_input", "send_message", "post_message"} {
		_, err := Invoke(w, Request{Action: action})
		assert.ErrorIs(t, err, ErrMissingArgument, action)
	}

	_, err = Invoke(w, Request{Action: "flash", Flash: &FlashRequest{Tray: true, Mode: "forever"}})
	assert.Error(t, err)

	_, err = Invoke(w, Request{Action: "animate", Animate: &AnimateRequest{Slide: true, Blend: true}})
	assert.ErrorIs(t, err, ErrConflictingEffects)

	fake.Remove(20)
	_, err = Invoke(w, Request{Action: "hide"})
	assert.ErrorIs(t, err, ErrWindowNotFound)
	assert.Empty(t, fake.Calls())
}

func TestActionsSorted(t *testing.T) {
	names := Actions()
	assert.Contains(t, names, "animate")
	assert.Contains(t, names, "destroy")
	assert.IsIncreasing(t, names)
}

func TestRequestConversions(t *testing.T) {
	opts, err := FlashRequest{Caption: true, Mode: "continuous", Count: 3, IntervalMS: 100}.Options()
	require.NoError(t, err)
	assert.Equal(t, window.FlashOptions{Caption: true, Mode: window.FlashContinuous, Count: 3, Interval: 100 * time.Millisecond}, opts)

	anim, err := AnimateRequest{Hide: true, Direction: "up", DurationMS: 50}.Options()
	require.NoError(t, err)
	assert.Equal(t, AnimateOptions{Hide: true, Direction: DirectionUp, Duration: 50 * time.Millisecond}, anim)

	_, err = FlashRequest{Caption: true, Mode: "forever"}.Options()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = AnimateRequest{Slide: true, Direction: "sideways"}.Options()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
