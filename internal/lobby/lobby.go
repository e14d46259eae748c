// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/game"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/jason-s-yu/geohunt/internal/store"
)

// CreateLobby opens a waiting lobby hosted by host and returns it. The preset
// must exist. Codes that collide with a live lobby are redrawn.
func (m *Manager) CreateLobby(ctx context.Context, host uuid.UUID, username string, presetID uuid.UUID, timeLimit, maxPlayers int) (*models.Lobby, error) {
	if timeLimit <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", models.ErrValidation)
	}
	if maxPlayers <= 0 {
		return nil, fmt.Errorf("%w: max players must be positive", models.ErrValidation)
	}
	if _, err := m.presets.GetPreset(ctx, presetID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		l := &models.Lobby{
			Code:       m.GenerateCode(),
			Host:       host,
			Status:     models.StatusWaiting,
			PresetID:   presetID,
			TimeLimit:  timeLimit,
			MaxPlayers: maxPlayers,
			Players: map[uuid.UUID]*models.PlayerState{
				host: models.NewPlayerState(username),
			},
		}
		err := m.store.CreateLobby(ctx, l)
		if errors.Is(err, store.ErrCodeTaken) {
			m.log.Debugf("lobby code %s taken, retrying", l.Code)
			continue
		}
		if err != nil {
			return nil, err
		}
		m.logFor(l.Code, host).Info("lobby created")
		return l, nil
	}
	return nil, fmt.Errorf("no free lobby code after %d attempts: %w", maxCodeAttempts, models.ErrTransient)
}

// GetLobby returns the current lobby state.
func (m *Manager) GetLobby(ctx context.Context, code string) (*models.Lobby, error) {
	return m.store.GetLobby(ctx, code)
}

// JoinLobby adds userID to the lobby. Joining a lobby the user is already in
// changes nothing.
func (m *Manager) JoinLobby(ctx context.Context, code string, userID uuid.UUID, username string) (*models.Lobby, error) {
	l, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		if l.HasPlayer(userID) {
			return nil
		}
		if len(l.Players) >= l.MaxPlayers {
			return models.ErrLobbyFull
		}
		if l.Status != models.StatusWaiting {
			return models.ErrAlreadyStarted
		}
		l.Players[userID] = models.NewPlayerState(username)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logFor(code, userID).Debug("joined lobby")
	return l, nil
}

// LeaveGame removes userID from the lobby. A host leaving does not delete the
// lobby: the host closes it with CloseLobby, and the empty-lobby sweeper
// collects lobbies whose host is gone. A departure that leaves every
// remaining player finished ends the round.
func (m *Manager) LeaveGame(ctx context.Context, code string, userID uuid.UUID) error {
	var ended *models.Lobby
	_, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		ended = nil
		if !l.HasPlayer(userID) {
			return nil
		}
		delete(l.Players, userID)
		ended = autoEnd(l)
		return nil
	})
	if err != nil {
		return err
	}
	m.logFor(code, userID).Debug("left lobby")
	m.afterAutoEnd(ctx, ended)
	return nil
}

// CloseLobby deletes the lobby. Only the host may close it.
func (m *Manager) CloseLobby(ctx context.Context, code string, userID uuid.UUID) error {
	l, err := m.store.GetLobby(ctx, code)
	if err != nil {
		return err
	}
	if l.Host != userID {
		return models.ErrNotHost
	}
	if err := m.store.DeleteLobby(ctx, code); err != nil {
		return err
	}
	m.stopTimer(code)
	m.logFor(code, userID).Info("lobby closed")
	return nil
}

// StartGame deals every player a fresh session from the lobby's preset and
// starts the round clock. Only the host may start, and only while waiting or
// after the previous round's deadline. If the lobby disappears between reading
// the preset and writing the round, the start is dropped and logged.
func (m *Manager) StartGame(ctx context.Context, code string, userID uuid.UUID) (*models.Lobby, error) {
	l, err := m.store.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkStartable(l, userID, m.Now().UnixMilli()); err != nil {
		return nil, err
	}
	preset, err := m.presets.GetPreset(ctx, l.PresetID)
	if err != nil {
		return nil, err
	}

	updated, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		if err := checkStartable(l, userID, m.Now().UnixMilli()); err != nil {
			return err
		}
		return game.StartRound(l, preset, m.Sampler, m.rules, m.Now())
	})
	if errors.Is(err, models.ErrNotFound) {
		m.logFor(code, userID).Warn("lobby vanished before the round could start")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.armTimer(code, *updated.EndTime)
	m.logFor(code, userID).Infof("round started with %d players", len(updated.Players))
	m.emit(ctx, updated, userID, models.EventRoundStarted, map[string]interface{}{
		"preset":  preset.ID.String(),
		"players": len(updated.Players),
		"targets": len(preset.Targets),
	})
	return updated, nil
}

func checkStartable(l *models.Lobby, userID uuid.UUID, nowMs int64) error {
	if l.Host != userID {
		return models.ErrNotHost
	}
	if l.Status == models.StatusInProgress && (l.EndTime == nil || *l.EndTime > nowMs) {
		return models.ErrAlreadyStarted
	}
	return nil
}

// EndGame returns the lobby to waiting. Only the host may end a round by hand.
// Ending a lobby that is already waiting is a no-op.
func (m *Manager) EndGame(ctx context.Context, code string, userID uuid.UUID) (*models.Lobby, error) {
	var before *models.Lobby
	updated, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		before = nil
		if l.Host != userID {
			return models.ErrNotHost
		}
		if l.Status == models.StatusInProgress {
			before = l.Clone()
		}
		game.EndRound(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.stopTimer(code)
	if before != nil {
		m.logFor(code, userID).Info("round ended by host")
		m.emitRoundEnded(ctx, before, "host")
	}
	return updated, nil
}

// autoEnd ends the round when every participant has finished, returning the
// pre-end state for reporting, or nil if the round keeps going.
func autoEnd(l *models.Lobby) *models.Lobby {
	if !game.ShouldAutoEnd(l) {
		return nil
	}
	before := l.Clone()
	game.EndRound(l)
	return before
}

func (m *Manager) afterAutoEnd(ctx context.Context, ended *models.Lobby) {
	if ended == nil {
		return
	}
	m.stopTimer(ended.Code)
	m.logFor(ended.Code, uuid.Nil).Info("all players finished, round ended")
	m.emitRoundEnded(ctx, ended, "finished")
}
