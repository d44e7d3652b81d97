package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"library/internal/config"
	"library/internal/database"
	"library/internal/modules/notification"
	"library/internal/modules/payment"
	"library/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("config load failed")
	}

	logger := logging.New(cfg.LogLevel, !cfg.IsProdLike())
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	stripeProvider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     cfg.StripeAPIKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})
	var webhooks payment.WebhookParser
	if cfg.StripeWebhookSecret != "" {
		webhooks = stripeProvider
	}

	a := newApp(cfg, db, logger, stripeProvider, webhooks)
	a.start()
	defer a.stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OverdueSweepEnabled {
		sweeper := notification.NewOverdueSweeper(a.store.Borrowings, a.dispatcher, logger.With().Str("component", "overdue").Logger(), a.metrics)
		stopSweep := sweeper.Schedule(ctx, cfg.OverdueSweepInterval)
		defer close(stopSweep)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("library API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
