// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/middleware"
	"github.com/jason-s-yu/geohunt/internal/models"
)

type createLobbyRequest struct {
	PresetID   uuid.UUID `json:"presetId"`
	TimeLimit  int       `json:"timeLimit"`
	MaxPlayers int       `json:"maxPlayers"`
}

// CreateLobbyHandler opens a lobby hosted by the caller.
func CreateLobbyHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}
		userID := middleware.UserID(r.Context())
		name, err := usernameFor(r.Context(), api, userID)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}

		l, err := api.Lobbies.CreateLobby(r.Context(), userID, name, req.PresetID, req.TimeLimit, req.MaxPlayers)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func GetLobbyHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := api.Lobbies.GetLobby(r.Context(), lobbyCode(r))
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func JoinLobbyHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		name, err := usernameFor(r.Context(), api, userID)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		l, err := api.Lobbies.JoinLobby(r.Context(), lobbyCode(r), userID, name)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func LeaveLobbyHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.Lobbies.LeaveGame(r.Context(), lobbyCode(r), middleware.UserID(r.Context())); err != nil {
			writeError(w, api.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CloseLobbyHandler deletes the lobby. Host only.
func CloseLobbyHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.Lobbies.CloseLobby(r.Context(), lobbyCode(r), middleware.UserID(r.Context())); err != nil {
			writeError(w, api.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// StartGameHandler starts a round. Host only.
func StartGameHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := api.Lobbies.StartGame(r.Context(), lobbyCode(r), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		if l == nil {
			writeError(w, api.Log, models.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// EndGameHandler ends the running round. Host only.
func EndGameHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := api.Lobbies.EndGame(r.Context(), lobbyCode(r), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}
