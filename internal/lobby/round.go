// internal/lobby/round.go
package lobby

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/game"
	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/jason-s-yu/geohunt/internal/store"
)

// UseHint reveals a hint on one of the player's targets, charging its cost
// once. reviewIndex is only read for review hints.
func (m *Manager) UseHint(ctx context.Context, code string, userID uuid.UUID, targetID string, kind models.HintKind, reviewIndex int) (game.HintResult, error) {
	cost, err := m.rules.HintCost(kind)
	if err != nil {
		return game.HintResult{}, err
	}

	var res game.HintResult
	l, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		var err error
		res, err = game.UseHint(l, userID, targetID, kind, cost, reviewIndex, m.Now(), m.rules)
		return err
	})
	if err != nil {
		m.endIfExpired(ctx, code, err)
		return game.HintResult{}, err
	}
	if res.Charged {
		m.emit(ctx, l, userID, models.EventHintUsed, map[string]interface{}{
			"target": targetID,
			"kind":   string(kind),
			"cost":   cost,
			"value":  res.Value,
		})
	}
	return res, nil
}

// SelectTarget marks targetID as the player's pending guess.
func (m *Manager) SelectTarget(ctx context.Context, code string, userID uuid.UUID, targetID string) error {
	_, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		return game.SelectTarget(l, userID, targetID, m.Now(), m.rules)
	})
	m.endIfExpired(ctx, code, err)
	return err
}

// endIfExpired ends a round whose deadline passed without its timer firing,
// which happens after a restart or when another instance started the round.
func (m *Manager) endIfExpired(ctx context.Context, code string, err error) {
	if !errors.Is(err, models.ErrRoundNotActive) {
		return
	}
	l, err := m.store.GetLobby(ctx, code)
	if err != nil || l.Status != models.StatusInProgress || !l.RoundExpired(m.Now()) {
		return
	}
	m.expireRound(ctx, code, *l.EndTime)
}

// CheckGuess evaluates guessedPlaceID against the player's pending selection.
// A guess that finishes the last participant ends the round.
func (m *Manager) CheckGuess(ctx context.Context, code string, userID uuid.UUID, guessedPlaceID string) (game.GuessResult, error) {
	var (
		res      game.GuessResult
		selected string
		ended    *models.Lobby
	)
	l, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		ended = nil
		selected = ""
		if p, ok := l.Players[userID]; ok {
			selected = p.PendingGuess
		}
		var err error
		res, err = game.CheckGuess(l, userID, selected, guessedPlaceID, m.Now(), m.rules)
		if err != nil {
			return err
		}
		ended = autoEnd(l)
		return nil
	})
	if err != nil {
		m.endIfExpired(ctx, code, err)
		return game.GuessResult{}, err
	}

	round := l
	if ended != nil {
		round = ended
	}
	m.emit(ctx, round, userID, models.EventGuess, map[string]interface{}{
		"target":    selected,
		"guess":     guessedPlaceID,
		"correct":   res.Correct,
		"awarded":   res.Awarded,
		"firstFind": res.FirstFind,
	})
	if res.Finish != nil {
		m.emitFinished(ctx, round, userID, *res.Finish)
	}
	m.afterAutoEnd(ctx, ended)
	return res, nil
}

// FinishRound ends the player's round early.
func (m *Manager) FinishRound(ctx context.Context, code string, userID uuid.UUID) (game.FinishResult, error) {
	var (
		res     game.FinishResult
		already bool
		ended   *models.Lobby
	)
	l, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		ended = nil
		already = false
		if p, ok := l.Players[userID]; ok {
			already = p.Finished
		}
		var err error
		res, err = game.FinishRound(l, userID, m.Now(), m.rules)
		if err != nil {
			return err
		}
		ended = autoEnd(l)
		return nil
	})
	if err != nil {
		m.endIfExpired(ctx, code, err)
		return game.FinishResult{}, err
	}
	if !already {
		round := l
		if ended != nil {
			round = ended
		}
		m.emitFinished(ctx, round, userID, res)
	}
	m.afterAutoEnd(ctx, ended)
	return res, nil
}

func (m *Manager) emitFinished(ctx context.Context, l *models.Lobby, userID uuid.UUID, res game.FinishResult) {
	m.emit(ctx, l, userID, models.EventPlayerFinished, map[string]interface{}{
		"bonus":          res.Bonus,
		"first":          res.First,
		"completionTime": res.CompletionTime,
	})
}

// UpdateLocation records the player's position and recomputes whether they
// are inside the preset's play area. A nil position clears the fix.
func (m *Manager) UpdateLocation(ctx context.Context, code string, userID uuid.UUID, pos *geo.Point) (bool, error) {
	l, err := m.store.GetLobby(ctx, code)
	if err != nil {
		return false, err
	}
	preset, err := m.presets.GetPreset(ctx, l.PresetID)
	if err != nil {
		return false, err
	}

	var inRange bool
	_, err = m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		if err := game.UpdateLocation(l, userID, pos, preset.StartingLocation, preset.Radius); err != nil {
			return err
		}
		inRange = l.Players[userID].InRange
		return nil
	})
	return inRange, err
}

// SetOnline marks the player connected and clears their last-active stamp.
func (m *Manager) SetOnline(ctx context.Context, code string, userID uuid.UUID) error {
	_, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		p, ok := l.Players[userID]
		if !ok {
			return fmt.Errorf("player %s: %w", userID, models.ErrNotFound)
		}
		p.MarkOnline()
		return nil
	})
	return err
}

// OfflinePatch marks the player offline as of the moment it is applied.
func (m *Manager) OfflinePatch(userID uuid.UUID) store.Patch {
	return func(l *models.Lobby) {
		if p, ok := l.Players[userID]; ok {
			p.MarkOffline(m.Now())
		}
	}
}

// Subscribe marks the player online and streams lobby snapshots. When ctx
// ends without the subscription being closed, the player is marked offline.
func (m *Manager) Subscribe(ctx context.Context, code string, userID uuid.UUID) (*store.Subscription, error) {
	if err := m.SetOnline(ctx, code, userID); err != nil {
		return nil, err
	}
	sub, err := m.store.Subscribe(ctx, code)
	if err != nil {
		return nil, err
	}
	sub.OnDisconnect(m.OfflinePatch(userID))
	return sub, nil
}
