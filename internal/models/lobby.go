// internal/models/lobby.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the round state of a lobby.
type LobbyStatus string

const (
	StatusWaiting    LobbyStatus = "waiting"
	StatusInProgress LobbyStatus = "in-progress"
)

// Lobby is the root aggregate stored at games/{code}. PlayerState and
// RemainingTarget values live and die with it.
type Lobby struct {
	Code       string      `json:"code"`
	Host       uuid.UUID   `json:"host"`
	Status     LobbyStatus `json:"status"`
	PresetID   uuid.UUID   `json:"presetId"`
	TimeLimit  int         `json:"timeLimit"` // minutes
	MaxPlayers int         `json:"maxPlayers"`

	// EndTime is the round deadline in unix milliseconds, nil while waiting.
	EndTime *int64 `json:"endTime"`

	Players map[uuid.UUID]*PlayerState `json:"players"`
}

// HasPlayer reports whether userID is in the player map.
func (l *Lobby) HasPlayer(userID uuid.UUID) bool {
	_, ok := l.Players[userID]
	return ok
}

// HostPresent reports whether the recorded host still has a player entry.
func (l *Lobby) HostPresent() bool {
	return l.HasPlayer(l.Host)
}

// OtherPlayers returns every player except userID.
func (l *Lobby) OtherPlayers(userID uuid.UUID) map[uuid.UUID]*PlayerState {
	others := make(map[uuid.UUID]*PlayerState, len(l.Players))
	for id, p := range l.Players {
		if id != userID {
			others[id] = p
		}
	}
	return others
}

// RoundExpired reports whether a running round's deadline is at or before now.
func (l *Lobby) RoundExpired(now time.Time) bool {
	return l.EndTime != nil && *l.EndTime <= now.UnixMilli()
}

// Clone returns a deep copy of the lobby.
func (l *Lobby) Clone() *Lobby {
	data, err := json.Marshal(l)
	if err != nil {
		panic("models: lobby is not serializable: " + err.Error())
	}
	var cp Lobby
	if err := json.Unmarshal(data, &cp); err != nil {
		panic("models: lobby round trip failed: " + err.Error())
	}
	if cp.Players == nil {
		cp.Players = make(map[uuid.UUID]*PlayerState)
	}
	return &cp
}
