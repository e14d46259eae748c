// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/geohunt/internal/auth"
	"github.com/jason-s-yu/geohunt/internal/lobby"
	"github.com/jason-s-yu/geohunt/internal/middleware"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// UserStore is the account storage the handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// PresetStore is the preset storage the handlers need.
type PresetStore interface {
	InsertPreset(ctx context.Context, p *models.Preset) error
	GetPreset(ctx context.Context, id uuid.UUID) (*models.Preset, error)
	ListPresetsByCreator(ctx context.Context, creator string) ([]*models.Preset, error)
	DeletePresetByCreator(ctx context.Context, id uuid.UUID, creator string) error
}

// API bundles what the HTTP and WebSocket handlers share.
type API struct {
	Lobbies *lobby.Manager
	Users   UserStore
	Presets PresetStore
	Tokens  *auth.Issuer
	Log     logrus.FieldLogger

	// LocationRate throttles location samples per WebSocket connection.
	LocationRate  rate.Limit
	LocationBurst int
}

// NewRouter wires every route.
func NewRouter(api *API) *mux.Router {
	if api.LocationRate == 0 {
		api.LocationRate = rate.Limit(1)
	}
	if api.LocationBurst == 0 {
		api.LocationBurst = 3
	}

	r := mux.NewRouter()
	r.Use(middleware.LogMiddleware(api.Log))

	r.HandleFunc("/user/create", CreateUserHandler(api)).Methods(http.MethodPost)
	r.HandleFunc("/user/login", LoginHandler(api)).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.RequireUser(api.Tokens))

	authed.HandleFunc("/user/me", MeHandler(api)).Methods(http.MethodGet)
	authed.HandleFunc("/user/me", DeleteMeHandler(api)).Methods(http.MethodDelete)

	authed.HandleFunc("/presets", CreatePresetHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/presets", ListPresetsHandler(api)).Methods(http.MethodGet)
	authed.HandleFunc("/presets/{id}", GetPresetHandler(api)).Methods(http.MethodGet)
	authed.HandleFunc("/presets/{id}", DeletePresetHandler(api)).Methods(http.MethodDelete)

	authed.HandleFunc("/lobby/create", CreateLobbyHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}", GetLobbyHandler(api)).Methods(http.MethodGet)
	authed.HandleFunc("/lobby/{code}", CloseLobbyHandler(api)).Methods(http.MethodDelete)
	authed.HandleFunc("/lobby/{code}/join", JoinLobbyHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/leave", LeaveLobbyHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/start", StartGameHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/end", EndGameHandler(api)).Methods(http.MethodPost)

	authed.HandleFunc("/lobby/{code}/location", LocationHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/select", SelectTargetHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/hint", HintHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/guess", GuessHandler(api)).Methods(http.MethodPost)
	authed.HandleFunc("/lobby/{code}/finish", FinishHandler(api)).Methods(http.MethodPost)

	authed.HandleFunc("/lobby/{code}/ws", LobbyWSHandler(api)).Methods(http.MethodGet)
	return r
}
