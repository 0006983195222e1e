package metrics

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net/http"
	"time"
)

const (
	RefreshSuccess   = "success"
	RefreshFailure   = "failure"
	RefreshPiggyback = "piggyback"
	RefreshSkipped   = "skipped"
)

var (
	// Pipeline Metrics
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zentry_http_requests_total",
		Help: "Outgoing API requests by status code.",
	}, []string{"code"})
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zentry_http_request_duration_seconds",
		Help:    "Latency of outgoing API requests.",
		Buckets: prometheus.DefBuckets,
	})
	UnauthorizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zentry_http_unauthorized_total",
		Help: "Responses rejected with 401 before any recovery.",
	})
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zentry_token_refresh_total",
		Help: "Outcomes of 401 recovery: success, failure, piggyback on a concurrent refresh, skipped.",
	}, []string{"result"})

	// Session Metrics
	LoginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zentry_login_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	SessionClearsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zentry_session_clears_total",
		Help: "Session wipes by reason.",
	}, []string{"reason"})
)

// Server exposes the default registry over HTTP.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func NewServer(port int, path string, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	s.log.Info("starting metrics server", slog.String("addr", s.srv.Addr))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
