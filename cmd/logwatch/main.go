package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/gatewaylabs/logwatch/pkg/logwatch"
	"github.com/gatewaylabs/logwatch/pkg/util"
)

func main() {
	os.Exit(run())
}

// buildServiceConfig creates service config from ConfigSpec
func buildServiceConfig(logger *slog.Logger, metrics *logwatch.Metrics) logwatch.Config {
	return logwatch.Config{
		LogPath:              logwatch.ConfigSpec.GetString("access-log.path"),
		DatabasePath:         logwatch.ConfigSpec.GetString("database.path"),
		CheckpointPath:       logwatch.ConfigSpec.GetString("checkpoint.path"),
		MaxLineBytes:         logwatch.ConfigSpec.GetInt("ingest.max-line-bytes"),
		MaxScanRows:          logwatch.ConfigSpec.GetInt("query.max-scan-rows"),
		DefaultPageSize:      logwatch.ConfigSpec.GetInt("query.default-page-size"),
		MaxPageSize:          logwatch.ConfigSpec.GetInt("query.max-page-size"),
		AlertWindow:          time.Duration(logwatch.ConfigSpec.GetInt("alerts.window-minutes")) * time.Minute,
		ClientErrorThreshold: logwatch.ConfigSpec.GetInt("alerts.client-error-threshold"),
		RequestRateThreshold: logwatch.ConfigSpec.GetInt("alerts.request-rate-threshold"),
		MissingKeyThreshold:  logwatch.ConfigSpec.GetInt("alerts.missing-key-threshold"),
		Retention:            time.Duration(logwatch.ConfigSpec.GetInt("retention.max-age-days")) * 24 * time.Hour,
		IgnoredClients:       util.ParseIdentityList(logwatch.ConfigSpec.GetString("clients.ignore")),
		DatabaseBusyTimeout:  time.Duration(logwatch.ConfigSpec.GetInt("database.busy-timeout-seconds")) * time.Second,
		Metrics:              metrics,
		Logger:               logger,
	}
}

// runSyncLoop runs ingestion cycles on the configured interval until the
// context is canceled
func runSyncLoop(ctx context.Context, service *logwatch.Service,
	interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := service.Sync(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// The checkpoint was not advanced; the next tick retries.
			logger.Error("ingestion cycle failed", "error", err)
		} else {
			logger.Debug("ingestion cycle done",
				"linesRead", result.LinesRead,
				"eventsInserted", result.EventsInserted,
				"position", result.Checkpoint.Position)
		}

		select {
		case <-ctx.Done():
			logger.Info("sync loop stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForShutdown waits for shutdown signal or loop error, returns exit code
func waitForShutdown(cancel context.CancelFunc, logger *slog.Logger,
	errChan <-chan error, signalsChan <-chan os.Signal, shutdownTimeout time.Duration) int {
	select {
	case sig := <-signalsChan:
		logger.Info("signal received", "signal", sig)
		cancel()

		shutdownTimer := time.NewTimer(shutdownTimeout)
		defer shutdownTimer.Stop()

		select {
		case <-shutdownTimer.C:
			logger.Warn("shutdown timeout exceeded, forcing exit")
			return 1
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sync loop stopped with error", "error", err)
				return 1
			}
		}

	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync loop error", "error", err)
			return 1
		}
	}

	return 0
}

func run() int {
	// Add command-line flags
	logwatch.ConfigSpec.AddFlag(pflag.CommandLine, "log-level", "log-level")
	logwatch.ConfigSpec.AddFlag(pflag.CommandLine, "access-log", "access-log.path")
	logwatch.ConfigSpec.AddFlag(pflag.CommandLine, "database", "database.path")

	configFileFlag := pflag.String("config-file", "", "Path to configuration file")
	pflag.Parse()

	// Load configuration
	configFile := *configFileFlag
	if configFile == "" {
		configFile = os.Getenv("LOGWATCH_CONFIG_FILE")
	}

	err := logwatch.ConfigSpec.LoadConfiguration(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		pflag.Usage()
		return 2
	}

	// Validate configuration
	err = logwatch.ValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		return 2
	}

	// Set up logger
	logLevel := util.ParseLogLevel(logwatch.ConfigSpec.GetString("log-level"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	shutdownTimeout := time.Duration(logwatch.ConfigSpec.GetInt("shutdown-timeout-seconds")) * time.Second
	syncInterval := time.Duration(logwatch.ConfigSpec.GetInt("sync.interval-seconds")) * time.Second

	// Create service
	ctx := context.Background()
	metrics := logwatch.NewMetrics()
	serviceCfg := buildServiceConfig(logger, metrics)

	service, err := logwatch.NewService(ctx, serviceCfg)
	if err != nil {
		logger.Error("failed to create service", "error", err)
		return 1
	}
	defer func() {
		if closeErr := service.Close(); closeErr != nil {
			logger.Error("failed to close service", "error", closeErr)
		}
	}()

	// Start metrics server
	metricsServer, err := util.StartMetricsServer(util.MetricsServerConfig{
		Enabled:       logwatch.ConfigSpec.GetBool("metrics-server.enabled"),
		ListenAddress: logwatch.ConfigSpec.GetString("metrics-server.listen-address"),
		ListenPort:    logwatch.ConfigSpec.GetInt("metrics-server.listen-port"),
	}, logger)
	if err != nil {
		logger.Error("failed to start metrics server", "error", err)
		return 1
	}
	if metricsServer != nil {
		defer func() {
			if closeErr := metricsServer.Close(); closeErr != nil {
				logger.Error("failed to close metrics server", "error", closeErr)
			}
		}()
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalsChan := make(chan os.Signal, 1)
	signal.Notify(signalsChan, unix.SIGINT, unix.SIGTERM)

	// Start sync loop in goroutine
	errChan := make(chan error)
	go func() {
		errChan <- runSyncLoop(ctx, service, syncInterval, logger)
	}()

	// Wait for signal or error
	exitCode := waitForShutdown(cancel, logger, errChan, signalsChan, shutdownTimeout)

	if exitCode == 0 {
		logger.Info("logwatch stopped")
	}
	return exitCode
}
