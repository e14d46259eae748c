// internal/game/session.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/models"
)

// GenerateSession builds one player's target list for a round. Every call draws
// fresh offsets, so two players (or two rounds) never share jitter.
func GenerateSession(s *geo.Sampler, preset *models.Preset, rules Rules) ([]models.RemainingTarget, error) {
	targets := make([]models.RemainingTarget, 0, len(preset.Targets))
	for i, def := range preset.Targets {
		offset, err := s.RandomPointConstrained(def.Location, rules.TargetRadius, preset.StartingLocation, preset.Radius)
		if err != nil {
			return nil, fmt.Errorf("placing target %s: %w", def.PlaceID, err)
		}

		def.Types = append([]string(nil), def.Types...)
		def.Reviews = append([]string(nil), def.Reviews...)
		targets = append(targets, models.RemainingTarget{
			TargetDef:  def,
			Index:      i + 1,
			RandOffset: offset,
			Value:      rules.InitialValue,
			Hints:      models.NewHintSet(),
		})
	}
	return targets, nil
}
