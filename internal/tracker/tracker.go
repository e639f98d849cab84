package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/angeloszaimis/gstats/internal/metrics"
)

// Sender delivers one measurement to the collector at addr.
type Sender interface {
	Send(ctx context.Context, addr string, msg metrics.IngestMessage) error
}

// Tracker correlates request ids with their start times.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]time.Time

	sender  Sender
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	warn    *rate.Limiter
	dropped atomic.Int64
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithTimeout bounds each send. Zero leaves the sender's own deadline.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.timeout = d }
}

// WithWarnRate limits how often dropped measurements are logged.
func WithWarnRate(every time.Duration) Option {
	return func(t *Tracker) { t.warn = rate.NewLimiter(rate.Every(every), 1) }
}

func New(sender Sender, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		pending: make(map[string]time.Time),
		sender:  sender,
		now:     time.Now,
		logger:  logger,
		warn:    rate.NewLimiter(rate.Every(10*time.Second), 1),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// NewRequestID returns a fresh random request identity.
func NewRequestID() string {
	return uuid.NewString()
}

// Start records the start of request id. When collect is set a started
// marker is sent to the collector first.
func (t *Tracker) Start(id string, collect bool, addr, namespace string) {
	if collect {
		t.send(addr, metrics.StartedMessage(namespace))
	}

	t.mu.Lock()
	t.pending[id] = t.now()
	t.mu.Unlock()
}

// End reports the elapsed milliseconds of request id. It returns false, and
// sends nothing, when id has no recorded start.
func (t *Tracker) End(id, addr, namespace string) (float64, bool) {
	t.mu.Lock()
	started, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return 0, false
	}

	elapsed := float64(t.now().Sub(started)) / float64(time.Millisecond)
	if elapsed < 0 {
		elapsed = 0
	}

	t.send(addr, metrics.FinishedMessage(namespace, elapsed))
	return elapsed, true
}

// Pending returns the number of requests started but not ended.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Dropped returns how many measurements failed to reach the collector.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

func (t *Tracker) send(addr string, msg metrics.IngestMessage) {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := t.sender.Send(ctx, addr, msg); err != nil {
		total := t.dropped.Add(1)
		if t.warn.Allow() {
			t.logger.Warn("Dropped measurement",
				slog.String("collector", addr),
				slog.String("namespace", msg.Namespace),
				slog.Int64("dropped_total", total),
				slog.Any("err", err))
		}
	}
}
