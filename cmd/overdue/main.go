package main

import (
	"context"
	"time"

	"library/internal/config"
	"library/internal/database"
	"library/internal/modules/notification"
	"library/internal/pkg/logging"
	"library/internal/repository"
)

// overdue runs one sweep and exits. Meant for cron when the API's built-in
// ticker is disabled with OVERDUE_SWEEP_ENABLED=false.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("config load failed")
	}
	logger := logging.New(cfg.LogLevel, !cfg.IsProdLike())

	if !cfg.TelegramEnabled() {
		logger.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := repository.NewStore(db)
	telegram := notification.NewTelegramClient(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID, nil)

	n, err := notification.NewOverdueSweeper(store.Borrowings, telegram, logger, nil).Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Int("overdue", n).Msg("overdue sweep failed")
	}
	logger.Info().Int("overdue", n).Msg("overdue sweep completed")
}
