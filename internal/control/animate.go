package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// Direction is where a slide animation moves towards
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLeft
	DirectionRight
	DirectionUp
	DirectionDown
	DirectionCenter // expand from or collapse into the center
)

// ParseDirection accepts left, right, up, down, center or ""
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DirectionNone, nil
	case "left":
		return DirectionLeft, nil
	case "right":
		return DirectionRight, nil
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	case "center":
		return DirectionCenter, nil
	}
	return DirectionNone, fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, s)
}

// AnimateOptions controls Animate. Without Blend the window rolls or
// slides open (or closed when Hide is set) along Direction, which
// defaults to down.
type AnimateOptions struct {
	Hide      bool          `json:"hide"`
	Slide     bool          `json:"slide"`
	Blend     bool          `json:"blend"`
	Direction Direction     `json:"direction"`
	Duration  time.Duration `json:"duration"`
	Steps     int           `json:"steps"`
}

const (
	defaultAnimationDuration = 200 * time.Millisecond
	defaultAnimationSteps    = 10
)

// Animate shows or hides the window with a transition
func (w *Window) Animate(opts AnimateOptions) (*Window, error) {
	if opts.Slide && opts.Blend {
		return w, ErrConflictingEffects
	}
	if opts.Duration <= 0 {
		opts.Duration = defaultAnimationDuration
	}
	if opts.Steps <= 0 {
		opts.Steps = defaultAnimationSteps
	}
	if opts.Direction == DirectionNone {
		opts.Direction = DirectionDown
	}

	if opts.Blend {
		return w.do("animate", func(h window.Handle) error {
			return w.blend(h, opts)
		})
	}
	return w.do("animate", func(h window.Handle) error {
		return w.slide(h, opts)
	})
}

func (w *Window) blend(h window.Handle, opts AnimateOptions) error {
	interval := opts.Duration / time.Duration(opts.Steps)
	b := w.backend

	if !opts.Hide {
		if err := b.SetOpacity(h, 0); err != nil {
			return err
		}
		if err := b.Show(h, window.ShowOptions{}); err != nil {
			return err
		}
	}
	for i := 1; i <= opts.Steps; i++ {
		frac := float64(i) / float64(opts.Steps)
		if opts.Hide {
			frac = 1 - frac
		}
		w.sleep(interval)
		if err := b.SetOpacity(h, frac); err != nil {
			return err
		}
	}
	if opts.Hide {
		if err := b.Hide(h); err != nil {
			return err
		}
		return b.SetOpacity(h, 1)
	}
	return nil
}

func (w *Window) slide(h window.Handle, opts AnimateOptions) error {
	b := w.backend
	full, err := b.Rect(h)
	if err != nil {
		return err
	}
	interval := opts.Duration / time.Duration(opts.Steps)

	if !opts.Hide {
		if err := setRect(b, h, slideFrame(full, opts.Direction, 0)); err != nil {
			return err
		}
		if err := b.Show(h, window.ShowOptions{}); err != nil {
			return err
		}
	}
	for i := 1; i <= opts.Steps; i++ {
		frac := float64(i) / float64(opts.Steps)
		if opts.Hide {
			frac = 1 - frac
		}
		w.sleep(interval)
		if err := setRect(b, h, slideFrame(full, opts.Direction, frac)); err != nil {
			return err
		}
	}
	if opts.Hide {
		if err := b.Hide(h); err != nil {
			return err
		}
		return setRect(b, h, full)
	}
	return nil
}

// slideFrame is the visible part of full at progress frac in [0,1].
// Extents never drop below one pixel.
func slideFrame(full window.Rect, dir Direction, frac float64) window.Rect {
	width := max(1, int(float64(full.Width)*frac))
	height := max(1, int(float64(full.Height)*frac))

	r := full
	switch dir {
	case DirectionRight:
		r.Width = width
	case DirectionLeft:
		r.Width = width
		r.X = full.X + full.Width - width
	case DirectionDown:
		r.Height = height
	case DirectionUp:
		r.Height = height
		r.Y = full.Y + full.Height - height
	case DirectionCenter:
		r.Width, r.Height = width, height
		r.X = full.X + (full.Width-width)/2
		r.Y = full.Y + (full.Height-height)/2
	}
	return r
}

func setRect(b Backend, h window.Handle, r window.Rect) error {
	if err := b.SetPosition(h, r.Position()); err != nil {
		return err
	}
	return b.SetSize(h, r.Size())
}
