// Package telemetry serves prometheus metrics and health probes over HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"snmpcarrier/pkg/log"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "snmpcarrier"
	maxGoroutines   = 1000
	shutdownTimeout = 2 * time.Second
)

// ErrLoopStopped is reported by the readiness probe while the event loop
// is not running.
var ErrLoopStopped = errors.New("event loop not running")

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// LoopCheck reports the event loop as ready while running returns true.
func LoopCheck(running func() bool) healthcheck.Check {
	return func() error {
		if !running() {
			return ErrLoopStopped
		}
		return nil
	}
}

// NewHandler routes /metrics to reg and /live and /ready to health checks.
// The status of every check is exported through reg as well.
func NewHandler(reg *prometheus.Registry, ready healthcheck.Check) http.Handler {
	health := healthcheck.NewMetricsHandler(reg, namespace)
	health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	if ready != nil {
		health.AddReadinessCheck("reactor", ready)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	return mux
}

// Server is an HTTP server for the telemetry endpoints.
type Server struct {
	listener net.Listener
	srv      *http.Server
	logger   *log.Logger
}

// Listen opens addr for serving h.
func Listen(addr string, h http.Handler, logger *log.Logger) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(%s): %w", addr, err)
	}

	return &Server{
		listener: l,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve serves requests until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()

	s.logger.VerboseMsg("telemetry: serving on http://%s", s.Addr())

	select {
	case err := <-errCh:
		return fmt.Errorf("serving telemetry: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down telemetry: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving telemetry: %w", err)
	}
	return nil
}
