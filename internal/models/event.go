// internal/models/event.go
package models

import "github.com/google/uuid"

// RoundEventType names a recorded round event.
type RoundEventType string

const (
	EventRoundStarted   RoundEventType = "round_started"
	EventHintUsed       RoundEventType = "hint_used"
	EventGuess          RoundEventType = "guess"
	EventPlayerFinished RoundEventType = "player_finished"
	EventRoundEnded     RoundEventType = "round_ended"
)

// RoundEvent is one entry of a round's history. Round is the round's end
// time in unix ms, which identifies a round within a lobby. UserID is nil for
// lobby-wide events.
type RoundEvent struct {
	LobbyCode string                 `json:"lobby_code"`
	Round     int64                  `json:"round"`
	UserID    uuid.UUID              `json:"user_id"`
	Type      RoundEventType         `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}
