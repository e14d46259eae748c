// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/geohunt/internal/models"
)

// Rules holds the scoring constants of a round.
type Rules struct {
	InitialValue      int     `json:"initialValue"`      // starting value of every target
	MinValue          int     `json:"minValue"`          // floor for hint and penalty deductions
	WrongGuessPenalty int     `json:"wrongGuessPenalty"` // deducted from the selected target on a wrong guess
	FirstFindBonus    int     `json:"firstFindBonus"`    // awarded when no other player still holds the target
	FirstFinishBonus  int     `json:"firstFinishBonus"`  // awarded to the first player to finish
	FinishBonus       int     `json:"finishBonus"`       // awarded to every later finisher
	TargetRadius      float64 `json:"targetRadius"`      // jitter radius around each target, meters

	HintCosts map[models.HintKind]int `json:"hintCosts"`
}

// DefaultRules returns the standard scoring table.
func DefaultRules() Rules {
	return Rules{
		InitialValue:      100,
		MinValue:          20,
		WrongGuessPenalty: 5,
		FirstFindBonus:    20,
		FirstFinishBonus:  50,
		FinishBonus:       20,
		TargetRadius:      50,
		HintCosts: map[models.HintKind]int{
			models.HintStreet:  30,
			models.HintTypes:   20,
			models.HintReviews: 10,
		},
	}
}

// HintCost returns the configured cost of a hint kind.
func (r Rules) HintCost(kind models.HintKind) (int, error) {
	cost, ok := r.HintCosts[kind]
	if !ok {
		return 0, fmt.Errorf("%w: unknown hint type %q", models.ErrValidation, kind)
	}
	return cost, nil
}

// deduct lowers value by amount without going below the floor.
func (r Rules) deduct(value, amount int) int {
	value -= amount
	if value < r.MinValue {
		value = r.MinValue
	}
	return value
}
