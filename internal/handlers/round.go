// internal/handlers/round.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/middleware"
	"github.com/jason-s-yu/geohunt/internal/models"
)

type locationRequest struct {
	// Position is null when the device has no fix.
	Position *geo.Point `json:"position"`
}

type locationResponse struct {
	InRange bool `json:"inRange"`
}

func LocationHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req locationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}
		in, err := api.Lobbies.UpdateLocation(r.Context(), lobbyCode(r), middleware.UserID(r.Context()), req.Position)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, locationResponse{InRange: in})
	}
}

type selectRequest struct {
	TargetID string `json:"targetId"`
}

// SelectTargetHandler picks the target the next guess is for. The caller must
// be standing near it.
func SelectTargetHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}
		if err := api.Lobbies.SelectTarget(r.Context(), lobbyCode(r), middleware.UserID(r.Context()), req.TargetID); err != nil {
			writeError(w, api.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type hintRequest struct {
	TargetID    string          `json:"targetId"`
	Type        models.HintKind `json:"type"`
	ReviewIndex int             `json:"reviewIndex"`
}

func HintHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hintRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}
		res, err := api.Lobbies.UseHint(r.Context(), lobbyCode(r), middleware.UserID(r.Context()), req.TargetID, req.Type, req.ReviewIndex)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type guessRequest struct {
	PlaceID string `json:"placeId"`
}

// GuessHandler checks a guess against the caller's selected target.
func GuessHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req guessRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}
		res, err := api.Lobbies.CheckGuess(r.Context(), lobbyCode(r), middleware.UserID(r.Context()), req.PlaceID)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func FinishHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := api.Lobbies.FinishRound(r.Context(), lobbyCode(r), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
