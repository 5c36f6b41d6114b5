package util

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServerConfig holds the resolved metrics server settings
type MetricsServerConfig struct {
	Enabled       bool
	ListenAddress string
	ListenPort    int
}

// metricsHandlerLogger adapts slog to promhttp's error logger
type metricsHandlerLogger struct {
	promhttp.Logger

	logger *slog.Logger
}

func (l *metricsHandlerLogger) Println(v ...interface{}) {
	l.logger.Error("metrics request failed", "errorArgs", v)
}

// StartMetricsServer exposes the default prometheus registry on
// "/metrics" when cfg.Enabled is set; otherwise it returns (nil, nil).
//
// Listening happens here so a bad address fails startup instead of a
// background goroutine. The server's Addr field is rewritten to the
// bound address, which resolves port 0 to the actual port. A non-nil
// server must eventually be stopped with Close() or Shutdown().
func StartMetricsServer(cfg MetricsServerConfig, logger *slog.Logger) (*http.Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog: &metricsHandlerLogger{logger: logger},
	}))

	server := &http.Server{
		Handler:           mux,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s for metrics: %w", addr, err)
	}
	server.Addr = listener.Addr().String()

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server stopped unexpectedly", "error", serveErr)
		}
	}()

	logger.Info("metrics server listening", "address", server.Addr)

	return server, nil
}
