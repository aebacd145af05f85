package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/emalfatti/fintrack/internal/bot"
	"github.com/emalfatti/fintrack/internal/scheduler"
	"github.com/emalfatti/fintrack/pkg/client"
	"github.com/emalfatti/fintrack/pkg/config"
	"github.com/emalfatti/fintrack/pkg/logging"
	"github.com/emalfatti/fintrack/pkg/sheets"
	"github.com/emalfatti/fintrack/pkg/store/postgres"
)

func main() {
	// Setup logging
	logger := logging.Setup(logging.FromEnv())

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the record buffer
	store, err := postgres.New(ctx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Create OAuth authenticator
	auth, err := client.New(cfg.CredsFile, store, logger, sheets.Scope)
	if err != nil {
		logger.Error("failed to create authenticator", "error", err)
		os.Exit(1)
	}

	appender := sheets.New(auth, logger)
	sched := scheduler.New(store, store, appender, logger)

	// Connect to Telegram
	tg, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("failed to connect to telegram", "error", err)
		os.Exit(1)
	}
	tg.Debug = cfg.TelegramDebug

	b := bot.New(tg, store, store, auth, appender, sched, cfg.DeveloperUserID, logger)
	sched.SetNotify(b.Notify)
	sched.SetNotifyError(b.NotifyAppendFailure)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		b.Run(ctx)
	}()
	wg.Wait()

	logger.Info("shutdown complete")
}
