// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/geo"
)

// PlayerState is one player's record inside a lobby. The owning player's
// actions mutate it; sweepers may only delete it.
type PlayerState struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Online   bool   `json:"online"`

	// LastActive is set when the player drops offline and cleared while online.
	LastActive *time.Time `json:"lastActive"`

	InRange        bool  `json:"inRange"`
	Finished       bool  `json:"finished"`
	CompletionTime int64 `json:"completionTime"` // ms

	// Position is the last reported device location, nil without a fix.
	Position *geo.Point `json:"position,omitempty"`

	// PendingGuess is the target id the player selected for guessing.
	PendingGuess string `json:"pendingGuess,omitempty"`

	RemainingTargets []RemainingTarget `json:"remainingTargets,omitempty"`
}

// NewPlayerState returns the state a player joins with.
func NewPlayerState(username string) *PlayerState {
	return &PlayerState{
		Username: username,
		Online:   true,
	}
}

// FindTarget returns the index of targetID in the remaining list, or -1.
func (p *PlayerState) FindTarget(targetID string) int {
	for i := range p.RemainingTargets {
		if p.RemainingTargets[i].PlaceID == targetID {
			return i
		}
	}
	return -1
}

// HasTarget reports whether targetID is still in the remaining list.
func (p *PlayerState) HasTarget(targetID string) bool {
	return p.FindTarget(targetID) >= 0
}

// RemoveTarget drops targetID from the remaining list.
func (p *PlayerState) RemoveTarget(targetID string) {
	if i := p.FindTarget(targetID); i >= 0 {
		p.RemainingTargets = append(p.RemainingTargets[:i], p.RemainingTargets[i+1:]...)
	}
}

// MarkOnline records that the player's client is connected.
func (p *PlayerState) MarkOnline() {
	p.Online = true
	p.LastActive = nil
}

// MarkOffline records that the player's client dropped at t.
func (p *PlayerState) MarkOffline(t time.Time) {
	p.Online = false
	ts := t.UTC()
	p.LastActive = &ts
}

// PlayerSummary is the public view of a player used in round results.
type PlayerSummary struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Score          int       `json:"score"`
	Finished       bool      `json:"finished"`
	CompletionTime int64     `json:"completionTime"`
}
