package transport

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	IngestPath  = "/ingest"
	ControlPath = "/control"
)

// EndpointURL turns a configured address into a WebSocket URL. It accepts
// host:port as well as tcp://, http(s):// and ws(s):// URLs. A URL without a
// path gets path appended.
func EndpointURL(addr, path string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "tcp", "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}

	if u.Host == "" || u.Port() == "" {
		return "", fmt.Errorf("%w: %q needs host and port", ErrInvalidAddress, addr)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}

	return u.String(), nil
}
