package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angeloszaimis/gstats/internal/circuitbreaker"
	"github.com/angeloszaimis/gstats/internal/metrics"
)

const (
	DefaultTimeout = 250 * time.Millisecond
	maxIdlePerURL  = 4
)

// Client exchanges single request/reply frames with collector endpoints.
// It is safe for concurrent use; each exchange holds a connection
// exclusively and returns it to a small per-endpoint idle pool.
type Client struct {
	dialer   *websocket.Dialer
	timeout  time.Duration
	breakers *circuitbreaker.Registry

	mu     sync.Mutex
	idle   map[string][]*websocket.Conn
	closed bool
}

// NewClient returns a client whose exchanges are bounded by timeout. A nil
// breakers registry disables circuit breaking.
func NewClient(timeout time.Duration, breakers *circuitbreaker.Registry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		timeout:  timeout,
		breakers: breakers,
		idle:     make(map[string][]*websocket.Conn),
	}
}

// Send delivers msg to the ingest endpoint at addr and waits for OK.
func (c *Client) Send(ctx context.Context, addr string, msg metrics.IngestMessage) error {
	target, err := EndpointURL(addr, IngestPath)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode measurement: %w", err)
	}

	reply, err := c.exchange(ctx, target, payload)
	if err != nil {
		return err
	}

	if string(reply) != metrics.ReplyOK {
		return fmt.Errorf("%w: %q", ErrRejected, reply)
	}

	return nil
}

// Command sends command to the control endpoint at addr and returns the reply.
func (c *Client) Command(ctx context.Context, addr, command string) ([]byte, error) {
	target, err := EndpointURL(addr, ControlPath)
	if err != nil {
		return nil, err
	}

	return c.exchange(ctx, target, []byte(command))
}

// Close drops every idle connection. Later exchanges fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	idle := c.idle
	c.idle = make(map[string][]*websocket.Conn)
	c.closed = true
	c.mu.Unlock()

	for _, conns := range idle {
		for _, conn := range conns {
			closeConn(conn, websocket.CloseNormalClosure, "")
		}
	}

	return nil
}

// Breakers exposes the per-endpoint breaker registry, or nil.
func (c *Client) Breakers() *circuitbreaker.Registry {
	return c.breakers
}

func (c *Client) exchange(ctx context.Context, target string, payload []byte) ([]byte, error) {
	var cb *circuitbreaker.CircuitBreaker
	if c.breakers != nil {
		cb = c.breakers.GetBreaker(target)
		if !cb.Allow() {
			return nil, fmt.Errorf("%s: %w", target, ErrCircuitOpen)
		}
	}

	reply, err := c.attempt(ctx, target, payload)
	if cb != nil {
		if err != nil {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
	}

	return reply, err
}

func (c *Client) attempt(ctx context.Context, target string, payload []byte) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := c.get(target)
	if err != nil {
		return nil, err
	}

	if conn != nil {
		reply, err := roundTrip(conn, deadline, payload)
		if err == nil {
			c.put(target, conn)
			return reply, nil
		}
		_ = conn.Close()

		// A pooled connection may have been closed by the collector; one
		// fresh dial is allowed within the same deadline.
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return nil, fmt.Errorf("exchange with %s: %w", target, err)
		}
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, _, err = c.dialer.DialContext(dialCtx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	reply, err := roundTrip(conn, deadline, payload)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("exchange with %s: %w", target, err)
	}

	c.put(target, conn)
	return reply, nil
}

func roundTrip(conn *websocket.Conn, deadline time.Time, payload []byte) ([]byte, error) {
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, err
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	return reply, nil
}

func (c *Client) get(target string) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	conns := c.idle[target]
	if len(conns) == 0 {
		return nil, nil
	}

	conn := conns[len(conns)-1]
	c.idle[target] = conns[:len(conns)-1]
	return conn, nil
}

func (c *Client) put(target string, conn *websocket.Conn) {
	c.mu.Lock()
	if !c.closed && len(c.idle[target]) < maxIdlePerURL {
		c.idle[target] = append(c.idle[target], conn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	closeConn(conn, websocket.CloseNormalClosure, "")
}

// ControlQuerier issues QUERY against one control endpoint.
type ControlQuerier struct {
	client *Client
	addr   string
}

func NewControlQuerier(client *Client, addr string) *ControlQuerier {
	return &ControlQuerier{client: client, addr: addr}
}

func (q *ControlQuerier) Query(ctx context.Context) ([]byte, error) {
	return q.client.Command(ctx, q.addr, metrics.CommandQuery)
}
