// internal/database/db.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/geohunt/internal/models"
	log "github.com/sirupsen/logrus"
)

// DB is the global connection pool. Connect it once at application startup.
var DB *pgxpool.Pool

const uniqueViolation = "23505"

// ConnectDB opens the pool at connStr and pings it.
func ConnectDB(ctx context.Context, connStr string) error {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("db ping error: %w", err)
	}

	DB = pool
	log.Infof("Connected to database at %s:%d/%s", config.ConnConfig.Host, config.ConnConfig.Port, config.ConnConfig.Database)
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	username   TEXT NOT NULL UNIQUE,
	photo_url  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS presets (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	creator    TEXT NOT NULL,
	game_mode  TEXT NOT NULL DEFAULT '',
	start_lat  DOUBLE PRECISION NOT NULL,
	start_lng  DOUBLE PRECISION NOT NULL,
	radius     DOUBLE PRECISION NOT NULL,
	targets    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS presets_creator_idx ON presets (creator);

CREATE TABLE IF NOT EXISTS round_events (
	id         BIGSERIAL PRIMARY KEY,
	lobby_code TEXT NOT NULL,
	round      BIGINT NOT NULL,
	user_id    UUID,
	event_type TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS round_events_round_idx ON round_events (lobby_code, round);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows onto models.ErrNotFound.
func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
