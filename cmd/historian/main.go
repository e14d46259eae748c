// cmd/historian/main.go drains the round event queue into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/geohunt/internal/cache"
	"github.com/jason-s-yu/geohunt/internal/config"
	"github.com/jason-s-yu/geohunt/internal/database"
	"github.com/jason-s-yu/geohunt/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal(err)
	}
	defer database.DB.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal(err)
	}
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal(err)
	}
	defer cache.Rdb.Close()

	hs := historian.New(cache.Rdb, cfg.EventQueueName, database.EventStore{}, cfg.HistorianBatchSize, cfg.HistorianFlush, logger)
	hs.Run(ctx)
}
