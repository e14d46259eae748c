// internal/models/preset.go
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/geo"
)

// TemporaryCreator marks presets made for a single quick game. Sweepers delete
// them once no lobby references them.
const TemporaryCreator = "Temporary"

// Preset is a reusable game template stored at presets/{id}.
type Preset struct {
	ID               uuid.UUID   `json:"id"`
	Title            string      `json:"title"`
	Creator          string      `json:"creator"` // user id, or TemporaryCreator
	GameMode         string      `json:"gameMode"`
	StartingLocation geo.Point   `json:"startingLocation"`
	Radius           float64     `json:"radius"` // meters
	Targets          []TargetDef `json:"targets"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Validate checks the fields a preset needs before it can be stored.
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: preset title is required", ErrValidation)
	}
	if p.Radius <= 0 {
		return fmt.Errorf("%w: preset radius must be positive", ErrValidation)
	}
	if len(p.Targets) == 0 {
		return fmt.Errorf("%w: preset needs at least one target", ErrValidation)
	}
	seen := make(map[string]bool, len(p.Targets))
	for i, t := range p.Targets {
		if t.PlaceID == "" {
			return fmt.Errorf("%w: target %d has no place id", ErrValidation, i+1)
		}
		if seen[t.PlaceID] {
			return fmt.Errorf("%w: duplicate target %s", ErrValidation, t.PlaceID)
		}
		seen[t.PlaceID] = true
	}
	return nil
}

// IsTemporary reports whether the preset belongs to the synthetic Temporary creator.
func (p *Preset) IsTemporary() bool {
	return p.Creator == TemporaryCreator
}
