// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/jason-s-yu/geohunt/internal/models"
)

// ErrCodeTaken is returned by CreateLobby when the code is already in use.
var ErrCodeTaken = errors.New("lobby code already in use")

// Patch mutates a lobby inside an atomic update.
type Patch func(l *models.Lobby)

// UpdateFunc is applied to a fresh copy of the lobby. Returning an error
// aborts the update and nothing is written.
type UpdateFunc func(l *models.Lobby) error

// LobbyStore is the shared games/{code} tree. Every write is published to the
// lobby's subscribers.
type LobbyStore interface {
	// CreateLobby stores a new lobby, failing with ErrCodeTaken on collision.
	CreateLobby(ctx context.Context, l *models.Lobby) error

	// GetLobby returns a copy of the lobby or models.ErrNotFound.
	GetLobby(ctx context.Context, code string) (*models.Lobby, error)

	// UpdateLobby runs fn as an atomic read-modify-write and returns the stored result.
	UpdateLobby(ctx context.Context, code string, fn UpdateFunc) (*models.Lobby, error)

	// DeleteLobby removes the lobby. Deleting a missing lobby is not an error.
	DeleteLobby(ctx context.Context, code string) error

	// DeleteLobbyIf atomically removes the lobby when pred holds for its
	// current state, reporting whether it did. A missing lobby is (false, nil).
	DeleteLobbyIf(ctx context.Context, code string, pred func(l *models.Lobby) bool) (bool, error)

	// ListLobbies returns copies of every lobby.
	ListLobbies(ctx context.Context) ([]*models.Lobby, error)

	// Subscribe pushes a snapshot of the lobby on every write until the
	// subscription is closed or ctx ends. When ctx ends first, the patches
	// registered with OnDisconnect are applied.
	Subscribe(ctx context.Context, code string) (*Subscription, error)
}

// applyPatches folds patches into a single update, ignoring a lobby that has
// since been deleted.
func applyPatches(ctx context.Context, s LobbyStore, code string, patches []Patch) error {
	_, err := s.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		for _, p := range patches {
			p(l)
		}
		return nil
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}
