// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/geohunt/internal/config"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "geohunt_events"

// ConnectRedis initializes the global Redis client from cfg and pings it.
func ConnectRedis(cfg *config.Config) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	return nil
}

// EventQueue pushes round events onto a Redis list.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

// NewEventQueue returns a queue writing to the named list. An empty name
// selects DefaultQueueName.
func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &EventQueue{rdb: rdb, name: name}
}

// Name returns the Redis list name.
func (q *EventQueue) Name() string {
	return q.name
}

// PublishRoundEvent serializes ev and pushes it to the tail of the queue.
func (q *EventQueue) PublishRoundEvent(ctx context.Context, ev models.RoundEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoundEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w: %w", q.name, models.ErrTransient, err)
	}
	return nil
}
