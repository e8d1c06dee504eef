// Command bgpd runs the speaker supervisor of SPEC_FULL.md §4.5: it
// loads configuration, starts every configured peer's session worker,
// serves Prometheus metrics, and shuts down gracefully on SIGTERM/SIGINT.
//
// Grounded on _examples/pobradovic08-route-beacon-ri/cmd/rib-ingester's
// main: flag parsing into a config path, zap.NewProductionConfig with an
// ISO8601 time encoder, build-dependencies-then-signal.Notify-then-
// graceful-shutdown shape. bgpd has a single run mode, so the
// subcommand dispatch that repo uses (serve/migrate/maintenance) is
// dropped in favor of a flat main.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bgpd/config"
	"bgpd/httpapi"
	"bgpd/metrics"
	"bgpd/speaker"
)

func main() {
	configPath := flag.String("config", "", "path to configuration YAML file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "grace period for peer sessions to stop on shutdown")
	flag.Parse()

	logger := initLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting bgpd",
		zap.Uint16("my_as", cfg.MyAS),
		zap.String("router_id", cfg.RouterID.String()),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Int("neighbors", len(cfg.Neighbors)),
	)

	reg := prometheus.NewRegistry()
	metricsReg := metrics.New(reg)

	sv := speaker.New(cfg, logger.Named("speaker"), metricsReg)

	metricsSrv := httpapi.NewServer(cfg.MetricsListen, reg, logger.Named("http"))
	if err := metricsSrv.Start(); err != nil {
		logger.Fatal("failed to start metrics server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	speakerErr := make(chan error, 1)
	go func() { speakerErr <- sv.Start(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-speakerErr:
		if err != nil {
			logger.Error("speaker stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer shutdownCancel()

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	if err := sv.Stop(shutdownCtx); err != nil {
		logger.Warn("shutdown timeout reached, some peer sessions may not have stopped cleanly", zap.Error(err))
	}

	cancel()
	logger.Info("bgpd stopped")
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
