package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/taskmonitor/internal/control"
	"github.com/bryanchriswhite/taskmonitor/internal/events"
	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/plugin"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	tracker  *tracker.Reconciler
	backend  control.Backend
	hub      *events.Hub
	prefix   string
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

// NewServer creates a new API server. Events streamed to websocket
// clients are named with prefix.
func NewServer(rec *tracker.Reconciler, backend control.Backend, hub *events.Hub, prefix string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: rec,
		backend: backend,
		hub:     hub,
		prefix:  prefix,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Registry
	api.HandleFunc("/processes", s.handleGetProcesses).Methods("GET")
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")
	api.HandleFunc("/windows/active", s.handleGetActiveWindow).Methods("GET")
	api.HandleFunc("/windows/{hwnd:[0-9]+}", s.handleGetWindow).Methods("GET")

	// Command surface
	api.HandleFunc("/actions", s.handleGetActions).Methods("GET")
	api.HandleFunc("/windows/{hwnd:[0-9]+}/{action}", s.handleInvoke).Methods("POST")

	// Events
	api.HandleFunc("/events/stream", s.handleEventStream)

	api.HandleFunc("/plugin", s.handlePlugin).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler with CORS headers applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Info().Str("addr", addr).Msg("Starting HTTP server")
	return http.ListenAndServe(addr, s.Handler())
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// statusFor maps command errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, control.ErrWindowNotFound):
		return http.StatusNotFound
	case errors.Is(err, control.ErrInvalidHandle),
		errors.Is(err, control.ErrUnknownAction),
		errors.Is(err, control.ErrMissingArgument),
		errors.Is(err, control.ErrInvalidArgument),
		errors.Is(err, control.ErrConflictingEffects):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) snapshot(w http.ResponseWriter) (tracker.Snapshot, bool) {
	snap, ok := s.tracker.Snapshot()
	if !ok {
		http.Error(w, "Tracker is not running", http.StatusServiceUnavailable)
	}
	return snap, ok
}

// window resolves the {hwnd} route variable, sharing the tracked entry's
// title cache when there is one
func (s *Server) window(r *http.Request) (*control.Window, error) {
	raw := mux.Vars(r)["hwnd"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", control.ErrInvalidHandle, raw)
	}
	h := window.Handle(n)
	if entry, ok := s.tracker.Lookup(h); ok {
		return control.FromEntry(s.backend, entry)
	}
	return control.New(s.backend, h)
}

// HTTP Handlers

func (s *Server) handleGetProcesses(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	windows := make([]tracker.WindowInfo, 0, snap.WindowCount())
	for _, p := range snap.Processes {
		windows = append(windows, p.Windows...)
	}
	writeJSON(w, windows)
}

func (s *Server) handleGetActiveWindow(w http.ResponseWriter, r *http.Request) {
	h := s.tracker.LastActivated()
	if h == 0 {
		http.Error(w, "No window focused", http.StatusNotFound)
		return
	}
	entry, ok := s.tracker.Lookup(h)
	if !ok {
		http.Error(w, "No window focused", http.StatusNotFound)
		return
	}
	writeJSON(w, entry.Info())
}

// WindowState is the GET /api/windows/{hwnd} response
type WindowState struct {
	tracker.WindowInfo
	Tracked bool         `json:"tracked"`
	Alive   bool         `json:"alive"`
	Active  bool         `json:"active"`
	Visible bool         `json:"visible"`
	Enabled bool         `json:"enabled"`
	Rect    *window.Rect `json:"rect,omitempty"`
}

func (s *Server) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	_, tracked := s.tracker.Lookup(win.Handle())
	state := WindowState{
		WindowInfo: win.Info(),
		Tracked:    tracked,
		Alive:      win.IsAlive(),
		Active:     win.IsActive(),
		Visible:    win.IsVisible(),
		Enabled:    win.IsEnabled(),
	}
	if rect, err := win.Rect(); err == nil {
		state.Rect = &rect
	}
	writeJSON(w, state)
}

func (s *Server) handleGetActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, control.Actions())
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req control.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	req.Action = mux.Vars(r)["action"]

	win, err := s.window(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	res, err := control.Invoke(win, req)
	if err != nil {
		s.log.Debug().
			Err(err).
			Uint64("hwnd", uint64(win.Handle())).
			Str("action", req.Action).
			Msg("Window action failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, res)
}

// StreamMessage is one websocket frame of /api/events/stream
type StreamMessage struct {
	Qualified string `json:"event"`
	tracker.Event
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	// Reads only detect the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			msg := StreamMessage{Qualified: events.Qualified(s.prefix, ev.Name), Event: ev}
			if err := conn.WriteJSON(msg); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) handlePlugin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, plugin.TaskMonitorPlus(s.prefix))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	d := plugin.TaskMonitorPlus(s.prefix)
	status := "healthy"
	if !s.tracker.IsOpen() {
		status = "stopped"
	}
	writeJSON(w, map[string]interface{}{
		"status":      status,
		"name":        d.Name,
		"version":     d.Version,
		"backend":     backendName(s.backend),
		"stats":       s.tracker.Stats(),
		"subscribers": s.hub.Subscribers(),
		"dropped":     s.hub.Dropped(),
	})
}

func backendName(b control.Backend) string {
	if named, ok := b.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "unknown"
}
