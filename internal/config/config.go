// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Store backends accepted by LOBBY_STORE.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds every setting the binaries read from the environment.
type Config struct {
	Port string

	// DatabaseURL is DATABASE_URL when set, otherwise assembled from the
	// POSTGRES_* and PG_* variables.
	DatabaseURL string

	RedisAddr      string
	RedisDB        int
	LobbyStore     string
	EventQueueName string

	// TokenExpiry of zero means tokens never expire.
	TokenExpiry time.Duration
	// Raw ed25519 key files. When either is empty a key pair is generated at
	// startup.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	TargetRadiusMeters float64
	RunSweepers        bool
	LogLevel           log.Level

	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Load reads the environment. Malformed values fall back to their defaults,
// except for values that have no sensible default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        databaseURL(),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		LobbyStore:         strings.ToLower(getEnv("LOBBY_STORE", StoreRedis)),
		EventQueueName:     getEnv("EVENT_QUEUE_NAME", "geohunt_events"),
		JWTPrivateKeyPath:  os.Getenv("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:   os.Getenv("JWT_PUBLIC_KEY_PATH"),
		TargetRadiusMeters: getEnvFloat("TARGET_RADIUS_METERS", 50),
		RunSweepers:        getEnvBool("RUN_SWEEPERS", false),
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}

	if cfg.LobbyStore != StoreRedis && cfg.LobbyStore != StoreMemory {
		return nil, fmt.Errorf("LOBBY_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.LobbyStore)
	}

	expiry, err := parseTokenExpiry(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return nil, err
	}
	cfg.TokenExpiry = expiry

	level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.TargetRadiusMeters <= 0 {
		return nil, fmt.Errorf("TARGET_RADIUS_METERS must be positive, got %v", cfg.TargetRadiusMeters)
	}
	if cfg.HistorianBatchSize <= 0 {
		cfg.HistorianBatchSize = 20
	}
	return cfg, nil
}

// Logger returns a logrus logger at the configured level.
func (c *Config) Logger() *log.Logger {
	l := log.New()
	l.SetLevel(c.LogLevel)
	l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return l
}

func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// parseTokenExpiry accepts a Go duration, or "" / "never" for no expiry.
func parseTokenExpiry(s string) (time.Duration, error) {
	if s == "" || strings.EqualFold(s, "never") {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
