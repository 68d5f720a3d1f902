package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"gridbot/config"
	"gridbot/internal/adapters/binanceclient"
	"gridbot/internal/adapters/logger"
	"gridbot/internal/adapters/metrics"
	"gridbot/internal/adapters/sqlite"
	"gridbot/internal/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := logger.NewStdLogger(logger.LevelInfo)
		bootLog.Error(ctx, err, "Failed to load configuration")
		return 1
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Starting grid bot", map[string]interface{}{
		"symbols": cfg.Symbols,
		"testnet": cfg.IsTestnet,
	})

	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger.Named("journal"),
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to open order journal")
		return 1
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Failed to close order journal")
		}
	}()

	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger.Named("binance"),
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create exchange client")
		return 1
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			appLogger.Info(ctx, "Metrics server listening", map[string]interface{}{"addr": cfg.MetricsAddr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error(ctx, err, "Metrics server failed")
			}
		}()
	}

	// Engines fail only during startup (time sync, symbol filters, spacing);
	// once the loops are running they retry forever. One symbol failing must
	// not kill the rest, but a process with zero live engines is useless and
	// must exit nonzero instead of idling.
	var failed atomic.Int32
	total := int32(len(cfg.Symbols))

	var wg sync.WaitGroup
	for _, symbol := range cfg.Symbols {
		symbol := symbol
		eng := engine.New(symbol, cfg, exchange, journal, appLogger.Named(symbol))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eng.Run(ctx); err != nil {
				appLogger.Error(ctx, err, "Engine exited with error", map[string]interface{}{"symbol": symbol})
				if failed.Add(1) == total {
					appLogger.Error(ctx, err, "No engine survived startup, shutting down")
					stop()
				}
			}
		}()
	}

	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutdown signal received, draining")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(context.Background(), err, "Metrics server shutdown failed")
		}
		cancel()
	}

	wg.Wait()
	appLogger.Info(context.Background(), "All engines stopped")

	if failed.Load() == total {
		return 1
	}
	return 0
}
