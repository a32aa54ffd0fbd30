package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/reactive/internal/errors"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address (default: "localhost:7070").
	Addr string

	// WriteTimeout bounds each websocket write (default: 10s).
	WriteTimeout time.Duration

	// PingInterval is the websocket keepalive period (default: 30s).
	PingInterval time.Duration

	// CheckOrigin validates websocket origins. If nil, any origin is
	// accepted, which suits a local development tool.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:7070",
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Server exposes a Hub over HTTP.
type Server struct {
	config   Config
	hub      *Hub
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer builds the inspector routes. gatherer backs /metrics; when it
// is nil the route is not mounted.
func NewServer(config Config, hub *Hub, gatherer prometheus.Gatherer) *Server {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = func(*http.Request) bool { return true }
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger.With("component", "inspect"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r

	return s
}

// Handler returns the HTTP handler serving the inspector.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down and
// disconnects every subscriber.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.New("R301").
			WithDetail("Could not listen on " + s.config.Addr + ".").
			Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("inspector listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown; closing
	// the hub ends their write loops.
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Snapshot()); err != nil {
		s.logger.Error("encode stats", "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.Warn("event stream rejected",
			"error", errors.New("R302").Wrap(err).FormatCompact(),
			"request_id", middleware.GetReqID(r.Context()))
		return
	}
	defer conn.Close()

	id, frames, cancel := s.hub.Subscribe()
	defer cancel()

	snap := s.hub.Snapshot()
	hello, _ := json.Marshal(Message{Type: MessageHello, Client: id, Stats: &snap.Stats})
	if err := s.write(conn, websocket.TextMessage, hello); err != nil {
		return
	}

	// Clients only listen; the read loop exists to notice disconnects and
	// to process control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-frames:
			if !ok {
				s.write(conn, websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "inspector shutting down"))
				return
			}
			if err := s.write(conn, websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "client", id, "error", err)
				return
			}

		case <-ticker.C:
			if err := s.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteMessage(messageType, data)
}
