package network

import (
	"github.com/google/uuid"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"zentry/internal/metrics"
)

const HeaderRequestID = "X-Request-ID"

// LoggingTransport logs every outgoing request and tags it with a request id.
// Header values are never logged, so tokens stay out of the logs.
type LoggingTransport struct {
	base http.RoundTripper
	log  *slog.Logger
}

func NewLoggingTransport(base http.RoundTripper, log *slog.Logger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingTransport{base: base, log: log}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderRequestID) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	log := t.log.With(
		slog.String("request_id", req.Header.Get(HeaderRequestID)),
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		slog.Bool("authorized", req.Header.Get(HeaderAuthorization) != ""))

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)
	metrics.RequestDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.RequestsTotal.WithLabelValues("error").Inc()
		log.Warn("request failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed))
		return nil, err
	}

	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug("request completed",
		slog.Int("status", resp.StatusCode),
		slog.Int64("content_length", resp.ContentLength),
		slog.Duration("duration", elapsed))

	return resp, nil
}

func (t *LoggingTransport) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := t.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}
