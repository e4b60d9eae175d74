package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// StartMonitoringServer serves /healthz and /metrics on port until ctx is done.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - health: The handler answering /healthz.
// - port: The port number on which the server will listen.
func StartMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	health http.Handler,
	port int,
) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	Run(ctx, log.With("server", "monitoring"), server)
}

// Run serves srv until ctx is done, then shuts it down gracefully.
// It returns when the server stopped.
func Run(ctx context.Context, log *slog.Logger, srv *http.Server) {
	log.InfoContext(ctx, "Starting server", "addr", srv.Addr)

	var err error
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		log.InfoContext(ctx, "Server shutting down.")
		if err = srv.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "Server failed to shutdown", "error", err)
			return
		}
	case err = <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Server failed", "error", err)
		}
	}
}
