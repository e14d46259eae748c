// internal/handlers/preset.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/geohunt/internal/middleware"
	"github.com/jason-s-yu/geohunt/internal/models"
)

type createPresetRequest struct {
	models.Preset
	// Temporary presets belong to nobody and are swept once unused.
	Temporary bool `json:"temporary"`
}

func CreatePresetHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPresetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}

		p := req.Preset
		p.ID = uuid.Nil
		p.Creator = middleware.UserID(r.Context()).String()
		if req.Temporary {
			p.Creator = models.TemporaryCreator
		}
		if err := api.Presets.InsertPreset(r.Context(), &p); err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// ListPresetsHandler lists presets by creator. creator=me, or no creator,
// selects the caller's own.
func ListPresetsHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creator := r.URL.Query().Get("creator")
		if creator == "" || creator == "me" {
			creator = middleware.UserID(r.Context()).String()
		}
		presets, err := api.Presets.ListPresetsByCreator(r.Context(), creator)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		if presets == nil {
			presets = []*models.Preset{}
		}
		writeJSON(w, http.StatusOK, presets)
	}
}

func GetPresetHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := presetID(r)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		p, err := api.Presets.GetPreset(r.Context(), id)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// DeletePresetHandler deletes a preset the caller created.
func DeletePresetHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := presetID(r)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		creator := middleware.UserID(r.Context()).String()
		if err := api.Presets.DeletePresetByCreator(r.Context(), id, creator); err != nil {
			writeError(w, api.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func presetID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid preset id", models.ErrValidation)
	}
	return id, nil
}
