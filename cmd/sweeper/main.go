// cmd/sweeper/main.go runs the lobby maintenance jobs against the shared
// Redis lobby store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/geohunt/internal/cache"
	"github.com/jason-s-yu/geohunt/internal/config"
	"github.com/jason-s-yu/geohunt/internal/database"
	"github.com/jason-s-yu/geohunt/internal/store"
	"github.com/jason-s-yu/geohunt/internal/sweeper"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Logger()
	if cfg.LobbyStore == config.StoreMemory {
		logger.Fatal("the standalone sweeper needs LOBBY_STORE=redis; set RUN_SWEEPERS=true on the server instead")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal(err)
	}
	defer cache.Rdb.Close()

	var presets sweeper.PresetJanitor
	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Warnf("orphaned preset cleanup disabled: %v", err)
	} else {
		defer database.DB.Close()
		presets = database.Presets{}
	}

	sw := sweeper.New(store.NewRedisStore(cache.Rdb), presets, logger)
	logger.Info("sweeper started")
	sweeper.NewRunner(logger, sw.Jobs()...).Run(ctx)
	logger.Info("sweeper stopped")
}
