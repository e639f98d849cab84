package transport

import (
	"errors"

	"github.com/angeloszaimis/gstats/internal/circuitbreaker"
)

var (
	// ErrCircuitOpen is returned without dialing while an endpoint's breaker is open.
	ErrCircuitOpen = circuitbreaker.ErrOpen
	// ErrRejected wraps any reply other than OK to an ingest message.
	ErrRejected = errors.New("measurement rejected")
	// ErrClientClosed is returned by a Client after Close.
	ErrClientClosed = errors.New("transport client closed")
	// ErrInvalidAddress is returned for addresses that cannot name a WebSocket endpoint.
	ErrInvalidAddress = errors.New("invalid endpoint address")
)
