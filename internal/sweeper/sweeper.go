// internal/sweeper/sweeper.go
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/game"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/jason-s-yu/geohunt/internal/store"
	"github.com/sirupsen/logrus"
)

// Schedules and thresholds.
const (
	InactivePlayerInterval = 5 * time.Minute
	EmptyLobbyInterval     = 5 * time.Minute
	StaleRoundInterval     = 30 * time.Minute
	OrphanPresetInterval   = 5 * time.Minute

	InactiveAfter = 5 * time.Minute
)

var errNothingToDo = errors.New("nothing to do")

// PresetJanitor is the preset access the orphan cleanup needs.
type PresetJanitor interface {
	ListTemporaryPresets(ctx context.Context) ([]uuid.UUID, error)
	DeletePreset(ctx context.Context, id uuid.UUID) error
}

// Sweeper prunes lobby and preset state that no client will clean up. It only
// deletes players or lobbies and resets round status; it never touches scores
// or targets.
type Sweeper struct {
	store   store.LobbyStore
	presets PresetJanitor
	log     logrus.FieldLogger

	Now func() time.Time
}

// New returns a Sweeper. presets may be nil, which disables orphan cleanup.
func New(s store.LobbyStore, presets PresetJanitor, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{store: s, presets: presets, log: log, Now: time.Now}
}

// Jobs returns the four maintenance jobs on their standard schedules.
func (s *Sweeper) Jobs() []Job {
	jobs := []Job{
		{Name: "inactive-players", Interval: InactivePlayerInterval, Run: s.counted("removed inactive players", s.RemoveInactivePlayers)},
		{Name: "empty-lobbies", Interval: EmptyLobbyInterval, Run: s.counted("removed empty lobbies", s.RemoveEmptyLobbies)},
		{Name: "stale-rounds", Interval: StaleRoundInterval, Run: s.counted("reset stale rounds", s.ResetStaleRounds)},
	}
	if s.presets != nil {
		jobs = append(jobs, Job{Name: "orphaned-presets", Interval: OrphanPresetInterval, Run: s.counted("removed orphaned presets", s.RemoveOrphanedPresets)})
	}
	return jobs
}

func (s *Sweeper) counted(msg string, fn func(context.Context) (int, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := fn(ctx)
		if n > 0 {
			s.log.Infof("%s: %d", msg, n)
		}
		return err
	}
}

// skip logs a per-lobby failure. One bad lobby never stops a sweep.
func (s *Sweeper) skip(code string, err error) {
	if errors.Is(err, errNothingToDo) || errors.Is(err, models.ErrNotFound) {
		return
	}
	s.log.WithField("lobby", code).Warnf("sweep skipped lobby: %v", err)
}

// RemoveInactivePlayers drops players of waiting lobbies who have been
// offline longer than InactiveAfter.
func (s *Sweeper) RemoveInactivePlayers(ctx context.Context) (int, error) {
	lobbies, err := s.store.ListLobbies(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.Now().Add(-InactiveAfter)

	total := 0
	for _, l := range lobbies {
		if l.Status == models.StatusInProgress {
			continue
		}
		removed := 0
		_, err := s.store.UpdateLobby(ctx, l.Code, func(l *models.Lobby) error {
			removed = 0
			if l.Status == models.StatusInProgress {
				return errNothingToDo
			}
			for id, p := range l.Players {
				if p.LastActive != nil && p.LastActive.Before(cutoff) {
					delete(l.Players, id)
					removed++
				}
			}
			if removed == 0 {
				return errNothingToDo
			}
			return nil
		})
		if err != nil {
			s.skip(l.Code, err)
			continue
		}
		total += removed
	}
	return total, nil
}

// RemoveEmptyLobbies deletes lobbies whose host has no player entry.
func (s *Sweeper) RemoveEmptyLobbies(ctx context.Context) (int, error) {
	lobbies, err := s.store.ListLobbies(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, l := range lobbies {
		if l.HostPresent() {
			continue
		}
		// The host may have rejoined since the listing.
		deleted, err := s.store.DeleteLobbyIf(ctx, l.Code, func(cur *models.Lobby) bool {
			return !cur.HostPresent()
		})
		if err != nil {
			s.skip(l.Code, err)
			continue
		}
		if deleted {
			total++
		}
	}
	return total, nil
}

// ResetStaleRounds returns lobbies whose round deadline has passed to waiting.
func (s *Sweeper) ResetStaleRounds(ctx context.Context) (int, error) {
	lobbies, err := s.store.ListLobbies(ctx)
	if err != nil {
		return 0, err
	}
	now := s.Now()

	total := 0
	for _, l := range lobbies {
		if !l.RoundExpired(now) {
			continue
		}
		_, err := s.store.UpdateLobby(ctx, l.Code, func(l *models.Lobby) error {
			if !l.RoundExpired(now) {
				return errNothingToDo
			}
			game.EndRound(l)
			return nil
		})
		if err != nil {
			s.skip(l.Code, err)
			continue
		}
		total++
	}
	return total, nil
}

// RemoveOrphanedPresets deletes temporary presets no lobby refers to.
func (s *Sweeper) RemoveOrphanedPresets(ctx context.Context) (int, error) {
	if s.presets == nil {
		return 0, nil
	}
	lobbies, err := s.store.ListLobbies(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[uuid.UUID]struct{}, len(lobbies))
	for _, l := range lobbies {
		referenced[l.PresetID] = struct{}{}
	}

	ids, err := s.presets.ListTemporaryPresets(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range ids {
		if _, ok := referenced[id]; ok {
			continue
		}
		if err := s.presets.DeletePreset(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.log.WithField("preset", id.String()).Warnf("failed to delete orphaned preset: %v", err)
			continue
		}
		total++
	}
	return total, nil
}
