package window

import (
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
)

func TestEventLoopDeliversAndStops(t *testing.T) {
	b := &X11Backend{
		log:     logger.WithComponent("x11-backend"),
		clients: map[xproto.Window]struct{}{5: {}},
		urgent:  map[xproto.Window]bool{},
	}
	stop, done := make(chan struct{}), make(chan struct{})
	events := make(chan xevent)

	got := make(chan Notification, 4)
	go b.eventLoop(func(n Notification) { got <- n }, stop, done, events)

	events <- xevent{ev: xproto.MapNotifyEvent{Window: 5}}
	select {
	case n := <-got:
		assert.Equal(t, Notification{Kind: KindShown, Handle: 5}, n)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}

	events <- xevent{ev: xproto.DestroyNotifyEvent{Window: 5}}
	require.Equal(t, Notification{Kind: KindDestroyed, Handle: 5}, <-got)

	// unknown windows produce nothing
	events <- xevent{ev: xproto.MapNotifyEvent{Window: 6}}

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}
	assert.Empty(t, got)
}
