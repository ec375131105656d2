// Package main wires together the email open notifier service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/api"
	"github.com/jbialy/prospector/internal/closeio"
	"github.com/jbialy/prospector/internal/config"
	"github.com/jbialy/prospector/internal/dedup"
	"github.com/jbialy/prospector/internal/logging"
	"github.com/jbialy/prospector/internal/notify"
	"github.com/jbialy/prospector/internal/poller"
	"github.com/jbialy/prospector/internal/relay"
	"github.com/jbialy/prospector/internal/storage/postgres"
	"github.com/jbialy/prospector/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	store, err := postgres.NewOpenStore(ctx, postgres.OpenStoreConfig{
		DSN: cfg.Notifier.DatabaseDSN,
	})
	if err != nil {
		logger.Fatal("open store init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	sender, err := notify.NewDiscord(cfg.Notifier.DiscordWebhookURL, 15*time.Second, logger.Named("discord"))
	if err != nil {
		logger.Fatal("discord sender init failed", zap.Error(err))
	}

	cache := dedup.NewCache(cfg.CacheRetention())
	go cache.Sweep(ctx, time.Hour, logger.Named("dedup"))

	processor := relay.NewProcessor(cache, store, sender, logger.Named("relay"))

	if cfg.Notifier.PollingEnabled {
		closeClient, err := closeio.NewClient(closeio.Config{
			APIURL: cfg.Notifier.CloseAPIURL,
			APIKey: cfg.Notifier.CloseAPIKey,
		}, logger.Named("closeio"))
		if err != nil {
			logger.Fatal("close client init failed", zap.Error(err))
		}
		p := poller.New(closeClient, processor, cfg.PollingInterval(), logger.Named("poller"))
		go p.Run(ctx)
	} else {
		logger.Info("polling disabled, relying on webhooks only")
	}

	apiServer := api.NewServer(processor, store, cache, sender, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Notifier.Host, cfg.Notifier.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started",
			zap.String("host", cfg.Notifier.Host),
			zap.Int("port", cfg.Notifier.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
