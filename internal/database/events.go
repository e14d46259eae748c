// internal/database/events.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/geohunt/internal/models"
)

var roundEventColumns = []string{"lobby_code", "round", "user_id", "event_type", "payload", "created_at"}

// InsertRoundEvents copies a batch of events into round_events in one
// transaction.
func InsertRoundEvents(ctx context.Context, events []models.RoundEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload of %s event: %w", ev.Type, err)
		}
		var user interface{}
		if ev.UserID != uuid.Nil {
			user = ev.UserID
		}
		rows = append(rows, []interface{}{
			ev.LobbyCode, ev.Round, user, string(ev.Type), payload, time.UnixMilli(ev.Timestamp).UTC(),
		})
	}

	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"round_events"}, roundEventColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy round events: %w", err)
		}
		return nil
	})
}

// EventStore exposes InsertRoundEvents as an interface method.
type EventStore struct{}

func (EventStore) InsertRoundEvents(ctx context.Context, events []models.RoundEvent) error {
	return InsertRoundEvents(ctx, events)
}
