package commands

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/taskmonitor/internal/config"
	"github.com/bryanchriswhite/taskmonitor/internal/events"
	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/process"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// session is a connected backend with a running tracker
type session struct {
	cfg     *config.Config
	backend *window.X11Backend
	hub     *events.Hub
	tracker *tracker.Reconciler
	bus     *dbus.Conn
}

type sessionOptions struct {
	logEvents bool
	dbus      bool
}

// openSession connects to the display, wires the emitters and starts
// tracking. The caller must Close it.
func openSession(cfg *config.Config, opts sessionOptions) (*session, error) {
	log := logger.WithComponent("session")

	log.Info().Str("display", cfg.Display).Msg("Connecting to X11 server")
	backend, err := window.NewX11Backend(cfg.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}

	s := &session{
		cfg:     cfg,
		backend: backend,
		hub:     events.NewHub(cfg.EventBuffer),
	}

	emitters := events.Multi{s.hub}
	if opts.logEvents {
		emitters = append(emitters, events.NewLogEmitter(cfg.EventPrefix))
	}
	if opts.dbus && cfg.DBus.Enabled {
		if err := s.connectBus(); err != nil {
			s.Close()
			return nil, err
		}
		emitter, err := events.NewDBusEmitter(s.bus, cfg.DBus.Path, cfg.DBus.Interface, cfg.EventPrefix)
		if err != nil {
			s.Close()
			return nil, err
		}
		emitters = append(emitters, emitter)
		log.Info().Str("signal", emitter.Signal()).Msg("Emitting events on the session bus")
	}

	s.tracker, err = tracker.New(tracker.Options{
		Provider:        backend,
		Source:          backend,
		Names:           process.NewResolver(),
		Emitter:         emitters,
		TrayProcessName: cfg.Tray.ProcessName,
		TrayWindowClass: cfg.Tray.WindowClass,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.tracker.Open(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start tracking: %w", err)
	}

	if s.bus != nil {
		if err := events.ExportSnapshot(s.bus, cfg.DBus.Path, cfg.DBus.Interface, s.tracker.Snapshot); err != nil {
			log.Warn().Err(err).Msg("Snapshot method not available on the session bus")
		}
	}
	return s, nil
}

func (s *session) connectBus() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.bus = conn
	return nil
}

// Close stops tracking and releases the connections
func (s *session) Close() {
	if s.tracker != nil {
		s.tracker.Close()
	}
	s.hub.Close()
	if s.bus != nil {
		s.bus.Close()
	}
	s.backend.Close()
}
