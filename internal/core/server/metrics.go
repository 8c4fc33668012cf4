package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartMetrics serves Prometheus metrics on addr in the background.
// The returned server is stopped with Shutdown.
func StartMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				logger.Debug("metrics server closed")
			} else {
				logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}
	}()
	return server
}
