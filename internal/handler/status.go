package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/angeloszaimis/gstats/internal/metrics"
)

const StatusPath = "/_status"

type StatusHandler struct {
	logger  *slog.Logger
	source  metrics.Querier
	allowed *AllowList
	timeout time.Duration
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// NewStatusHandler relays QUERY replies from source to allowed callers.
func NewStatusHandler(logger *slog.Logger, source metrics.Querier, allowed *AllowList, timeout time.Duration) *StatusHandler {
	return &StatusHandler{
		logger:  logger,
		source:  source,
		allowed: allowed,
		timeout: timeout,
	}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	start := time.Now()

	h.allowed.Wrap(http.HandlerFunc(h.relay)).ServeHTTP(wrapped, r)

	h.logger.Info("Status request",
		slog.String("from", r.RemoteAddr),
		slog.String("method", r.Method),
		slog.Int("status", wrapped.statusCode),
		slog.Duration("duration", time.Since(start)))
}

func (h *StatusHandler) relay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := h.source.Query(ctx)
	if err != nil {
		h.logger.Warn("Collector query failed", slog.Any("err", err))
		http.Error(w, "collector unavailable", http.StatusBadGateway)
		return
	}

	// The collector answers ERROR in plain text when it rejects the command.
	if gjson.ValidBytes(body) {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(body)
	}
}

// NewStatusMux routes /_status to status and, when exporter is non-nil,
// /metrics behind the same allow-list. Every other path is 404.
func NewStatusMux(status *StatusHandler, exporter http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle(StatusPath, status)
	if exporter != nil {
		mux.Handle("/metrics", status.allowed.Wrap(exporter))
	}

	return mux
}
