package metrics

import "errors"

var (
	// ErrStopped is returned to callers whose message reaches a collector that
	// has already received a terminate signal.
	ErrStopped = errors.New("collector stopped")

	// ErrUnknownCommand is reported for control tokens other than QUERY or GET.
	ErrUnknownCommand = errors.New("unknown control command")

	// ErrInvalidLatency is reported for ingest messages whose latency is not a
	// finite, non-negative decimal number.
	ErrInvalidLatency = errors.New("invalid latency")
)
