// internal/game/round.go
package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/models"
)

// The functions in this file mutate a lobby snapshot in place. Callers run them
// inside a single read-modify-write on the store, so sibling checks (first
// find, first finish) see a consistent player map.

// StartRound resets every player, deals each a freshly generated session and
// flips the lobby to in-progress. Sessions are generated before anything is
// written, so a failure leaves the lobby untouched.
func StartRound(l *models.Lobby, preset *models.Preset, s *geo.Sampler, rules Rules, now time.Time) error {
	sessions := make(map[uuid.UUID][]models.RemainingTarget, len(l.Players))
	for id := range l.Players {
		targets, err := GenerateSession(s, preset, rules)
		if err != nil {
			return err
		}
		sessions[id] = targets
	}

	endTime := now.Add(time.Duration(l.TimeLimit) * time.Minute).UnixMilli()
	for id, p := range l.Players {
		p.Score = 0
		p.CompletionTime = 0
		p.Finished = false
		p.PendingGuess = ""
		p.RemainingTargets = sessions[id]
	}
	l.EndTime = &endTime
	l.Status = models.StatusInProgress
	return nil
}

// EndRound returns the lobby to waiting. It is safe to call repeatedly.
func EndRound(l *models.Lobby) {
	l.Status = models.StatusWaiting
	l.EndTime = nil
}

// activePlayer returns the player if a round is running at now. A round past
// its endTime is over even when no timer has ended it yet.
func activePlayer(l *models.Lobby, userID uuid.UUID, now time.Time) (*models.PlayerState, error) {
	if l.Status != models.StatusInProgress || l.EndTime == nil || l.RoundExpired(now) {
		return nil, models.ErrRoundNotActive
	}
	p, ok := l.Players[userID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", userID, models.ErrNotFound)
	}
	return p, nil
}

// HintResult describes the outcome of UseHint.
type HintResult struct {
	Charged bool `json:"charged"`
	Value   int  `json:"value"`
}

// UseHint charges cost against the target's value and marks the hint consumed.
// A hint that is already consumed is a no-op, including a reviews hint asked
// for with a different index.
func UseHint(l *models.Lobby, userID uuid.UUID, targetID string, kind models.HintKind, cost, reviewIndex int, now time.Time, rules Rules) (HintResult, error) {
	p, err := activePlayer(l, userID, now)
	if err != nil {
		return HintResult{}, err
	}
	i := p.FindTarget(targetID)
	if i < 0 {
		return HintResult{}, models.ErrTargetNotFound
	}
	target := &p.RemainingTargets[i]

	hint := target.Hints.Get(kind)
	if hint == nil {
		return HintResult{}, fmt.Errorf("%w: unknown hint type %q", models.ErrValidation, kind)
	}
	if hint.Consumed() {
		return HintResult{Value: target.Value}, nil
	}
	if kind == models.HintReviews && (reviewIndex < 0 || reviewIndex >= len(target.Reviews)) {
		return HintResult{}, fmt.Errorf("%w: review index %d out of range", models.ErrValidation, reviewIndex)
	}

	target.Value = rules.deduct(target.Value, cost)
	hint.Used = true
	if kind == models.HintReviews {
		hint.ReviewIndex = reviewIndex
	}
	return HintResult{Charged: true, Value: target.Value}, nil
}

// UpdateLocation stores the player's position and recomputes the in-range flag
// against the play area. A nil position means no fix and is never in range.
func UpdateLocation(l *models.Lobby, userID uuid.UUID, pos *geo.Point, start geo.Point, radius float64) error {
	p, ok := l.Players[userID]
	if !ok {
		return fmt.Errorf("player %s: %w", userID, models.ErrNotFound)
	}
	if pos == nil {
		p.Position = nil
		p.InRange = false
		return nil
	}
	cp := *pos
	p.Position = &cp
	p.InRange = geo.Within(&cp, start, radius)
	return nil
}

// SelectTarget makes targetID the player's pending guess. The player must be
// inside the jitter circle around the target's offset.
func SelectTarget(l *models.Lobby, userID uuid.UUID, targetID string, now time.Time, rules Rules) error {
	p, err := activePlayer(l, userID, now)
	if err != nil {
		return err
	}
	i := p.FindTarget(targetID)
	if i < 0 {
		return models.ErrTargetNotFound
	}
	if !geo.Within(p.Position, p.RemainingTargets[i].RandOffset, rules.TargetRadius) {
		return models.ErrOutOfRange
	}
	p.PendingGuess = targetID
	return nil
}

// GuessResult describes the outcome of CheckGuess.
type GuessResult struct {
	Correct   bool          `json:"correct"`
	Awarded   int           `json:"awarded"`
	FirstFind bool          `json:"firstFind"`
	Value     int           `json:"value"`
	Finish    *FinishResult `json:"finish,omitempty"`
}

// CheckGuess evaluates guessedPlaceID against the selected target. A correct
// guess removes the target and awards its value, plus FirstFindBonus when no
// other player still has the target remaining. A wrong guess costs the target
// WrongGuessPenalty. The pending selection is cleared either way. Clearing the
// last target finishes the player's round.
func CheckGuess(l *models.Lobby, userID uuid.UUID, selectedTargetID, guessedPlaceID string, now time.Time, rules Rules) (GuessResult, error) {
	p, err := activePlayer(l, userID, now)
	if err != nil {
		return GuessResult{}, err
	}
	defer func() { p.PendingGuess = "" }()

	if selectedTargetID == "" {
		return GuessResult{}, models.ErrNoSelection
	}
	i := p.FindTarget(selectedTargetID)
	if i < 0 {
		return GuessResult{}, models.ErrTargetNotFound
	}
	target := &p.RemainingTargets[i]

	if guessedPlaceID != selectedTargetID {
		target.Value = rules.deduct(target.Value, rules.WrongGuessPenalty)
		return GuessResult{Value: target.Value}, nil
	}

	res := GuessResult{Correct: true, Value: target.Value, Awarded: target.Value}
	p.RemoveTarget(selectedTargetID)

	res.FirstFind = true
	for _, other := range l.OtherPlayers(userID) {
		if other.HasTarget(selectedTargetID) {
			res.FirstFind = false
			break
		}
	}
	if res.FirstFind {
		res.Awarded += rules.FirstFindBonus
	}
	p.Score += res.Awarded

	if len(p.RemainingTargets) == 0 {
		fin, err := FinishRound(l, userID, now, rules)
		if err != nil {
			return res, err
		}
		res.Finish = &fin
	}
	return res, nil
}

// FinishResult describes the outcome of FinishRound.
type FinishResult struct {
	Bonus          int   `json:"bonus"`
	First          bool  `json:"first"`
	CompletionTime int64 `json:"completionTime"`
}

// FinishRound marks the player finished, records the elapsed round time and
// awards FirstFinishBonus if nobody else has finished, FinishBonus otherwise.
// Finishing twice is a no-op.
func FinishRound(l *models.Lobby, userID uuid.UUID, now time.Time, rules Rules) (FinishResult, error) {
	p, err := activePlayer(l, userID, now)
	if err != nil {
		return FinishResult{}, err
	}
	if p.Finished {
		return FinishResult{CompletionTime: p.CompletionTime}, nil
	}

	res := FinishResult{
		First:          true,
		CompletionTime: int64(l.TimeLimit)*60000 - (*l.EndTime - now.UnixMilli()),
	}
	for _, other := range l.OtherPlayers(userID) {
		if other.Finished {
			res.First = false
			break
		}
	}
	if res.First {
		res.Bonus = rules.FirstFinishBonus
	} else {
		res.Bonus = rules.FinishBonus
	}

	p.Finished = true
	p.CompletionTime = res.CompletionTime
	p.Score += res.Bonus
	return res, nil
}

// ShouldAutoEnd reports whether a running round can end because every
// non-host player has finished. A host playing alone counts as a participant.
func ShouldAutoEnd(l *models.Lobby) bool {
	if l.Status != models.StatusInProgress {
		return false
	}
	participants := 0
	for id, p := range l.Players {
		if id == l.Host {
			continue
		}
		participants++
		if !p.Finished {
			return false
		}
	}
	if participants == 0 {
		host, ok := l.Players[l.Host]
		return ok && host.Finished
	}
	return true
}

// Standings returns players ordered by score, highest first.
func Standings(l *models.Lobby) []models.PlayerSummary {
	out := make([]models.PlayerSummary, 0, len(l.Players))
	for id, p := range l.Players {
		out = append(out, models.PlayerSummary{
			ID:             id,
			Username:       p.Username,
			Score:          p.Score,
			Finished:       p.Finished,
			CompletionTime: p.CompletionTime,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Username < out[j].Username
	})
	return out
}
