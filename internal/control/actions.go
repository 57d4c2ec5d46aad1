package control

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

var (
	// ErrUnknownAction is returned by Invoke for an unregistered action name
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingArgument is returned by Invoke when a required argument is absent
	ErrMissingArgument = errors.New("missing argument")
)

// Request is a command invoked by name, as received by the API and CLI
type Request struct {
	Action   string          `json:"action" yaml:"action"`
	Position *window.Point   `json:"position,omitempty" yaml:"position,omitempty"`
	Size     *window.Size    `json:"size,omitempty" yaml:"size,omitempty"`
	Rect     *window.Rect    `json:"rect,omitempty" yaml:"rect,omitempty"`
	Activate bool            `json:"activate,omitempty" yaml:"activate,omitempty"`
	Default  bool            `json:"default,omitempty" yaml:"default,omitempty"`
	Force    bool            `json:"force,omitempty" yaml:"force,omitempty"`
	Enable   *bool           `json:"enable,omitempty" yaml:"enable,omitempty"`
	Keys     string          `json:"keys,omitempty" yaml:"keys,omitempty"`
	Flash    *FlashRequest   `json:"flash,omitempty" yaml:"flash,omitempty"`
	Animate  *AnimateRequest `json:"animate,omitempty" yaml:"animate,omitempty"`
	Message  *window.Message `json:"message,omitempty" yaml:"message,omitempty"`
}

// FlashRequest is the wire form of window.FlashOptions
type FlashRequest struct {
	Caption    bool   `json:"caption" yaml:"caption"`
	Tray       bool   `json:"tray" yaml:"tray"`
	Mode       string `json:"mode,omitempty" yaml:"mode,omitempty"` // once, until_active, continuous
	Count      int    `json:"count,omitempty" yaml:"count,omitempty"`
	IntervalMS int    `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
}

// Options converts the request
func (f FlashRequest) Options() (window.FlashOptions, error) {
	opts := window.FlashOptions{
		Caption:  f.Caption,
		Tray:     f.Tray,
		Count:    f.Count,
		Interval: time.Duration(f.IntervalMS) * time.Millisecond,
	}
	switch strings.ToLower(f.Mode) {
	case "", "once":
		opts.Mode = window.FlashOnce
	case "until_active":
		opts.Mode = window.FlashUntilActive
	case "continuous":
		opts.Mode = window.FlashContinuous
	default:
		return opts, fmt.Errorf("%w: unknown flash mode %q", ErrInvalidArgument, f.Mode)
	}
	return opts, nil
}

// AnimateRequest is the wire form of AnimateOptions
type AnimateRequest struct {
	Hide       bool   `json:"hide" yaml:"hide"`
	Slide      bool   `json:"slide" yaml:"slide"`
	Blend      bool   `json:"blend" yaml:"blend"`
	Direction  string `json:"direction,omitempty" yaml:"direction,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Steps      int    `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Options converts the request
func (a AnimateRequest) Options() (AnimateOptions, error) {
	dir, err := ParseDirection(a.Direction)
	if err != nil {
		return AnimateOptions{}, err
	}
	return AnimateOptions{
		Hide:      a.Hide,
		Slide:     a.Slide,
		Blend:     a.Blend,
		Direction: dir,
		Duration:  time.Duration(a.DurationMS) * time.Millisecond,
		Steps:     a.Steps,
	}, nil
}

// Result is the outcome of Invoke: the acted-upon window and, for
// queries, the value
type Result struct {
	Window tracker.WindowInfo `json:"window" yaml:"window"`
	Value  interface{}        `json:"value,omitempty" yaml:"value,omitempty"`
}

type action func(w *Window, req Request) (interface{}, error)

func chain(fn func(w *Window, req Request) (*Window, error)) action {
	return func(w *Window, req Request) (interface{}, error) {
		_, err := fn(w, req)
		return nil, err
	}
}

func query(fn func(w *Window) bool) action {
	return func(w *Window, _ Request) (interface{}, error) {
		return fn(w), nil
	}
}

var actions = map[string]action{
	"is_alive":   query((*Window).IsAlive),
	"is_active":  query((*Window).IsActive),
	"is_visible": query((*Window).IsVisible),
	"is_enabled": query((*Window).IsEnabled),
	"has_focus":  query((*Window).HasFocus),
	"title": func(w *Window, _ Request) (interface{}, error) {
		return w.Title(), nil
	},
	"class": func(w *Window, _ Request) (interface{}, error) {
		return w.Class(), nil
	},
	"rect": func(w *Window, _ Request) (interface{}, error) {
		return w.Rect()
	},
	"position": func(w *Window, _ Request) (interface{}, error) {
		return w.Position()
	},
	"size": func(w *Window, _ Request) (interface{}, error) {
		return w.Size()
	},
	"set_position": chain(func(w *Window, req Request) (*Window, error) {
		if req.Position == nil {
			return w, fmt.Errorf("%w: position", ErrMissingArgument)
		}
		return w.SetPosition(*req.Position)
	}),
	"set_size": chain(func(w *Window, req Request) (*Window, error) {
		if req.Size == nil {
			return w, fmt.Errorf("%w: size", ErrMissingArgument)
		}
		return w.SetSize(*req.Size)
	}),
	"set_rect": chain(func(w *Window, req Request) (*Window, error) {
		switch {
		case req.Rect != nil:
			return w.SetRect(*req.Rect)
		case req.Size != nil && req.Position != nil:
			return w.SetBounds(*req.Size, *req.Position)
		}
		return w, fmt.Errorf("%w: rect, or size and position", ErrMissingArgument)
	}),
	"show": chain(func(w *Window, req Request) (*Window, error) {
		return w.Show(window.ShowOptions{Activate: req.Activate, Default: req.Default})
	}),
	"hide": chain(func(w *Window, _ Request) (*Window, error) {
		return w.Hide()
	}),
	"restore": chain(func(w *Window, req Request) (*Window, error) {
		return w.Restore(req.Default)
	}),
	"minimize": chain(func(w *Window, req Request) (*Window, error) {
		return w.Minimize(req.Activate, req.Force)
	}),
	"maximize": chain(func(w *Window, _ Request) (*Window, error) {
		return w.Maximize()
	}),
	"flash": chain(func(w *Window, req Request) (*Window, error) {
		if req.Flash == nil {
			return w, fmt.Errorf("%w: flash", ErrMissingArgument)
		}
		opts, err := req.Flash.Options()
		if err != nil {
			return w, err
		}
		return w.Flash(opts)
	}),
	"stop_flash": chain(func(w *Window, _ Request) (*Window, error) {
		return w.StopFlash()
	}),
	"animate": chain(func(w *Window, req Request) (*Window, error) {
		var ar AnimateRequest
		if req.Animate != nil {
			ar = *req.Animate
		}
		opts, err := ar.Options()
		if err != nil {
			return w, err
		}
		return w.Animate(opts)
	}),
	"send_keys": chain(func(w *Window, req Request) (*Window, error) {
		if req.Keys == "" {
			return w, fmt.Errorf("%w: keys", ErrMissingArgument)
		}
		return w.SendKeys(req.Keys)
	}),
	"enable_input": chain(func(w *Window, req Request) (*Window, error) {
		if req.Enable == nil {
			return w, fmt.Errorf("%w: enable", ErrMissingArgument)
		}
		return w.EnableInput(*req.Enable)
	}),
	"bring_to_top": chain(func(w *Window, _ Request) (*Window, error) {
		return w.BringToTop()
	}),
	"focus": chain(func(w *Window, _ Request) (*Window, error) {
		return w.Focus()
	}),
	"parent": func(w *Window, _ Request) (interface{}, error) {
		p, err := w.Parent()
		if err != nil || p == nil {
			return nil, err
		}
		return p.Info(), nil
	},
	"close": chain(func(w *Window, _ Request) (*Window, error) {
		return w.Close()
	}),
	"destroy": chain(func(w *Window, _ Request) (*Window, error) {
		return w.Destroy()
	}),
	"send_message": chain(func(w *Window, req Request) (*Window, error) {
		if req.Message == nil {
			return w, fmt.Errorf("%w: message", ErrMissingArgument)
		}
		return w.SendMessage(*req.Message)
	}),
	"post_message": chain(func(w *Window, req Request) (*Window, error) {
		if req.Message == nil {
			return w, fmt.Errorf("%w: message", ErrMissingArgument)
		}
		return w.PostMessage(*req.Message)
	}),
}

// Actions lists the names accepted by Invoke
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named action on w
func Invoke(w *Window, req Request) (Result, error) {
	fn, ok := actions[req.Action]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	value, err := fn(w, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Window: w.Info(), Value: value}, nil
}
