package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turlebp/SysAlertV2/pkg/benchmark"
	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/crypto"
	"github.com/turlebp/SysAlertV2/pkg/db"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/monitor"
	"github.com/turlebp/SysAlertV2/pkg/queue"
	"github.com/turlebp/SysAlertV2/pkg/transport"
	"github.com/turlebp/SysAlertV2/pkg/webserver"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := log.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := log.GetLogger()

	logger.LogSystem("service", "start", true, map[string]interface{}{
		"bot_name": cfg.Telegram.BotName,
		"database": cfg.Database.Driver,
	})

	// Connect to database and run migrations
	database, err := db.New(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// Key derivation for the encrypted store
	cm, err := crypto.New(cfg.Security.MasterKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize crypto")
	}

	store := db.NewStore(database, cm, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Delivery queue over the Telegram transport
	sender := transport.NewTelegramSender(&cfg.Telegram)
	deliveryQueue := queue.NewManager(&cfg.Queue, sender.SendFunc(), logger)
	deliveryQueue.Start(ctx)

	// Background workers
	monitorService := monitor.NewService(&cfg.Monitor, cfg.Telegram.BotName, store, deliveryQueue, logger)
	go monitorService.Run(ctx)

	benchmarkService := benchmark.NewService(&cfg.Benchmark, cfg.Telegram.BotName, store, deliveryQueue, logger)
	go benchmarkService.Run(ctx)

	// Stats/health API
	server := webserver.NewServer(&cfg.Server, store, deliveryQueue, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("Stats server failed")
			cancel()
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	if err := server.Stop(); err != nil {
		logger.WithError(err).Error("Stats server shutdown failed")
	}
	deliveryQueue.Stop()

	logger.LogSystem("service", "stop", true, nil)
}
