package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type State int32

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type ingestRequest struct {
	msg   IngestMessage
	reply chan string
}

type controlRequest struct {
	command string
	reply   chan []byte
}

// ready holds at most one pending message per channel for a loop iteration.
type ready struct {
	ingest  *ingestRequest
	control *controlRequest
	signal  *int
}

// Collector is the statistics daemon's event loop. It is the only goroutine
// that touches its Store.
type Collector struct {
	store     *Store
	logger    *slog.Logger
	ingestCh  chan ingestRequest
	controlCh chan controlRequest
	signalCh  chan int
	done      chan struct{}
	state     atomic.Int32
	startOnce sync.Once
	stopOnce  sync.Once
}

const signalBuffer = 8

func NewCollector(store *Store, logger *slog.Logger) *Collector {
	return &Collector{
		store:     store,
		logger:    logger,
		ingestCh:  make(chan ingestRequest),
		controlCh: make(chan controlRequest),
		signalCh:  make(chan int, signalBuffer),
		done:      make(chan struct{}),
	}
}

// Start runs the loop in its own goroutine until a terminate signal is
// received or ctx is cancelled. Only the first call has an effect; a stopped
// collector is never restarted.
func (c *Collector) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Statistics collector started")
	defer c.logger.Info("Statistics collector stopped")
	defer c.stop()

	for {
		var r ready

		select {
		case req := <-c.ingestCh:
			r.ingest = &req
		case req := <-c.controlCh:
			r.control = &req
		case code := <-c.signalCh:
			r.signal = &code
		case <-ctx.Done():
			return
		}

		c.poll(&r)

		if !c.dispatch(r) {
			return
		}
	}
}

// poll picks up, without blocking, one message from every channel that was
// not the one that woke the loop.
func (c *Collector) poll(r *ready) {
	if r.ingest == nil {
		select {
		case req := <-c.ingestCh:
			r.ingest = &req
		default:
		}
	}

	if r.control == nil {
		select {
		case req := <-c.controlCh:
			r.control = &req
		default:
		}
	}

	if r.signal == nil {
		select {
		case code := <-c.signalCh:
			r.signal = &code
		default:
		}
	}
}

// dispatch services the ready messages in order and reports whether the loop
// keeps running.
func (c *Collector) dispatch(r ready) bool {
	if r.ingest != nil {
		r.ingest.reply <- c.handleIngest(r.ingest.msg)
	}

	if r.control != nil {
		r.control.reply <- c.handleControl(r.control.command)
	}

	if r.signal != nil {
		return c.handleSignal(*r.signal)
	}

	return true
}

func (c *Collector) handleIngest(msg IngestMessage) string {
	kind, latency, err := msg.Parse()
	if err != nil {
		c.logger.Debug("Rejected measurement",
			slog.String("namespace", msg.Namespace),
			slog.Any("err", err))
		return ReplyError
	}

	c.store.Collect(msg.Namespace, kind, latency)
	return ReplyOK
}

func (c *Collector) handleControl(command string) []byte {
	if !IsQuery(command) {
		c.logger.Debug("Unknown control command", slog.String("command", command))
		return []byte(ReplyError)
	}

	body, err := json.Marshal(c.store.Assemble())
	if err != nil {
		c.logger.Error("Failed to encode report", slog.Any("err", err))
		return []byte(ReplyError)
	}

	return body
}

func (c *Collector) handleSignal(code int) bool {
	switch ClassifySignal(code) {
	case ActionDie:
		c.logger.Info("Terminate signal received", slog.Int("signal", code))
		return false
	case ActionReset:
		c.logger.Info("Reset signal received",
			slog.Int("signal", code),
			slog.Int("namespaces", c.store.Namespaces()))
		c.store.Reset()
	default:
		c.logger.Debug("Ignoring signal", slog.Int("signal", code))
	}

	return true
}

func (c *Collector) stop() {
	c.stopOnce.Do(func() {
		c.state.Store(int32(StateStopped))
		close(c.done)
	})
}

// State reports whether the loop is still running.
func (c *Collector) State() State {
	return State(c.state.Load())
}

// Done is closed once the loop has stopped.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Ingest hands msg to the loop and waits for its acknowledgment.
func (c *Collector) Ingest(ctx context.Context, msg IngestMessage) (string, error) {
	reply := make(chan string, 1)

	select {
	case c.ingestCh <- ingestRequest{msg: msg, reply: reply}:
	case <-c.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}

	// The loop always answers a message it has accepted before it can stop.
	return <-reply, nil
}

// Command sends a control token to the loop and returns the raw reply.
func (c *Collector) Command(ctx context.Context, command string) ([]byte, error) {
	reply := make(chan []byte, 1)

	select {
	case c.controlCh <- controlRequest{command: command, reply: reply}:
	case <-c.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return <-reply, nil
}

// Query returns the serialized report of every namespace.
func (c *Collector) Query(ctx context.Context) ([]byte, error) {
	return c.Command(ctx, CommandQuery)
}

// Report decodes a Query reply.
func (c *Collector) Report(ctx context.Context) (Report, error) {
	body, err := c.Query(ctx)
	if err != nil {
		return nil, err
	}

	return DecodeReport(body)
}

// Signal posts a signal code to the loop. It never blocks on a stopped loop.
// A nil error means the code was queued, not that it was handled: a code
// queued while the loop is stopping is dropped with the rest of the queue.
func (c *Collector) Signal(ctx context.Context, code int) error {
	if c.stopped() {
		return ErrStopped
	}

	select {
	case c.signalCh <- code:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.stopped() {
		return ErrStopped
	}
	return nil
}

func (c *Collector) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// DecodeReport parses the document returned by a QUERY command.
func DecodeReport(body []byte) (Report, error) {
	if string(body) == ReplyError {
		return nil, ErrUnknownCommand
	}

	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	return report, nil
}
