package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Control tokens and replies exchanged with the collector.
const (
	CommandQuery = "QUERY"
	CommandGet   = "GET"

	ReplyOK    = "OK"
	ReplyError = "ERROR"
)

// IngestMessage carries one measurement from a tracker to the collector.
// An empty or "0" latency marks a request start; any other value is the
// elapsed time of a finished request in milliseconds.
type IngestMessage struct {
	Namespace string `json:"namespace"`
	Latency   string `json:"latency"`
}

// StartedMessage builds the message announcing a request start.
func StartedMessage(namespace string) IngestMessage {
	return IngestMessage{Namespace: namespace}
}

// FinishedMessage builds the message reporting a finished request.
// Latencies are written with three decimals so that a zero duration is never
// mistaken for a start marker.
func FinishedMessage(namespace string, latencyMs float64) IngestMessage {
	return IngestMessage{
		Namespace: namespace,
		Latency:   strconv.FormatFloat(latencyMs, 'f', 3, 64),
	}
}

// Parse classifies the message and decodes its latency.
func (m IngestMessage) Parse() (Kind, float64, error) {
	raw := strings.TrimSpace(m.Latency)
	if raw == "" || raw == "0" {
		return Started, 0, nil
	}

	latency, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Finished, 0, fmt.Errorf("%w: %q", ErrInvalidLatency, m.Latency)
	}

	if latency < 0 || math.IsNaN(latency) || math.IsInf(latency, 0) {
		return Finished, 0, fmt.Errorf("%w: %q", ErrInvalidLatency, m.Latency)
	}

	return Finished, latency, nil
}

// IsQuery reports whether token asks for a snapshot.
func IsQuery(token string) bool {
	switch strings.TrimSpace(token) {
	case CommandQuery, CommandGet:
		return true
	default:
		return false
	}
}
