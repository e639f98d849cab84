package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angeloszaimis/gstats/internal/httpserver"
	"github.com/angeloszaimis/gstats/internal/metrics"
)

// Ingester accepts one measurement and returns the reply token.
type Ingester interface {
	Ingest(ctx context.Context, msg metrics.IngestMessage) (string, error)
}

// Commander executes one control command and returns the raw reply.
type Commander interface {
	Command(ctx context.Context, command string) ([]byte, error)
}

const closeGrace = time.Second

// Endpoint upgrades requests to WebSocket connections and answers every
// frame read from them with exactly one reply frame. It remembers its open
// connections so that they can be closed on shutdown.
type Endpoint struct {
	name     string
	logger   *slog.Logger
	upgrader websocket.Upgrader
	reply    func(ctx context.Context, frame []byte) ([]byte, error)

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewIngestEndpoint decodes IngestMessage frames and hands them to target.
// Frames that are not valid JSON are answered with ERROR.
func NewIngestEndpoint(target Ingester, logger *slog.Logger) *Endpoint {
	return newEndpoint("ingest", logger, func(ctx context.Context, frame []byte) ([]byte, error) {
		var msg metrics.IngestMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			logger.Debug("Malformed ingest frame", slog.Any("err", err))
			return []byte(metrics.ReplyError), nil
		}

		reply, err := target.Ingest(ctx, msg)
		if err != nil {
			return nil, err
		}
		return []byte(reply), nil
	})
}

// NewControlEndpoint passes every frame to target as a command token.
func NewControlEndpoint(target Commander, logger *slog.Logger) *Endpoint {
	return newEndpoint("control", logger, func(ctx context.Context, frame []byte) ([]byte, error) {
		return target.Command(ctx, string(frame))
	})
}

func newEndpoint(name string, logger *slog.Logger, reply func(context.Context, []byte) ([]byte, error)) *Endpoint {
	return &Endpoint{
		name:   name,
		logger: logger.With(slog.String("endpoint", name)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		reply: reply,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		e.logger.Debug("Upgrade failed", slog.String("remote", r.RemoteAddr), slog.Any("err", err))
		return
	}

	if !e.track(conn) {
		_ = conn.Close()
		return
	}
	defer e.untrack(conn)

	e.serve(r.Context(), conn)
}

func (e *Endpoint) serve(ctx context.Context, conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Debug("Connection lost", slog.String("remote", conn.RemoteAddr().String()), slog.Any("err", err))
			}
			return
		}

		reply, err := e.reply(ctx, frame)
		if err != nil {
			if errors.Is(err, metrics.ErrStopped) {
				closeConn(conn, websocket.CloseGoingAway, "collector stopped")
			}
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			e.logger.Debug("Reply failed", slog.Any("err", err))
			return
		}
	}
}

func (e *Endpoint) track(conn *websocket.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.conns[conn] = struct{}{}
	return true
}

func (e *Endpoint) untrack(conn *websocket.Conn) {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()

	_ = conn.Close()
}

// Connections returns the number of open connections.
func (e *Endpoint) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// CloseAll closes every open connection and refuses new ones.
func (e *Endpoint) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for conn := range e.conns {
		closeConn(conn, websocket.CloseGoingAway, "shutting down")
	}
}

func closeConn(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(closeGrace))
	_ = conn.Close()
}

// Server serves one Endpoint at its path on its own listener.
type Server struct {
	srv      *httpserver.Server
	endpoint *Endpoint
}

// NewIngestServer serves the ingest endpoint for target on addr.
func NewIngestServer(addr string, target Ingester, logger *slog.Logger) (*Server, error) {
	return newServer(addr, IngestPath, NewIngestEndpoint(target, logger))
}

// NewControlServer serves the control endpoint for target on addr.
func NewControlServer(addr string, target Commander, logger *slog.Logger) (*Server, error) {
	return newServer(addr, ControlPath, NewControlEndpoint(target, logger))
}

func newServer(addr, path string, endpoint *Endpoint) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle(path, endpoint)

	srv, err := httpserver.New(addr, mux)
	if err != nil {
		return nil, err
	}
	srv.OnShutdown(endpoint.CloseAll)

	return &Server{srv: srv, endpoint: endpoint}, nil
}

// Listen binds the endpoint's socket.
func (s *Server) Listen() error {
	return s.srv.Listen()
}

// Addr returns the bound address once Listen has succeeded.
func (s *Server) Addr() string {
	return s.srv.Addr()
}

// Endpoint returns the served endpoint.
func (s *Server) Endpoint() *Endpoint {
	return s.endpoint
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	return s.srv.Start()
}

// Shutdown stops accepting connections and closes the open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
