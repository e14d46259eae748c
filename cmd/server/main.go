// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jason-s-yu/geohunt/internal/auth"
	"github.com/jason-s-yu/geohunt/internal/cache"
	"github.com/jason-s-yu/geohunt/internal/config"
	"github.com/jason-s-yu/geohunt/internal/database"
	"github.com/jason-s-yu/geohunt/internal/game"
	"github.com/jason-s-yu/geohunt/internal/handlers"
	"github.com/jason-s-yu/geohunt/internal/lobby"
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

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		return err
	}
	defer database.DB.Close()
	if err := database.Migrate(ctx); err != nil {
		return err
	}

	tokens, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	rules := game.DefaultRules()
	rules.TargetRadius = cfg.TargetRadiusMeters

	var lobbies store.LobbyStore
	var events lobby.EventSink
	switch cfg.LobbyStore {
	case config.StoreMemory:
		logger.Warn("using the in-memory lobby store; lobbies are lost on restart and round events are not recorded")
		lobbies = store.NewMemoryStore()
	default:
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.Rdb.Close()
		lobbies = store.NewRedisStore(cache.Rdb)
		events = cache.NewEventQueue(cache.Rdb, cfg.EventQueueName)
	}

	manager := lobby.NewManager(lobbies, database.Presets{}, rules, logger)
	manager.Events = events
	defer manager.Shutdown()

	var wg sync.WaitGroup
	if cfg.RunSweepers {
		sw := sweeper.New(lobbies, database.Presets{}, logger)
		runner := sweeper.NewRunner(logger, sw.Jobs()...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(ctx)
		}()
	}

	api := &handlers.API{
		Lobbies: manager,
		Users:   database.Users{},
		Presets: database.Presets{},
		Tokens:  tokens,
		Log:     logger,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("http shutdown: %v", err)
		}
	}
	stop()
	wg.Wait()
	return nil
}

func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		return auth.NewIssuerFromFiles(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpiry)
	}
	return auth.NewIssuer(cfg.TokenExpiry)
}
