// internal/handlers/user.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/middleware"
	"github.com/jason-s-yu/geohunt/internal/models"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	PhotoURL string `json:"photoURL"`
}

// CreateUserHandler registers an account. A taken email or username is a 400.
func CreateUserHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}

		user := models.User{
			Email:    req.Email,
			Password: req.Password,
			Username: req.Username,
			PhotoURL: req.PhotoURL,
		}
		if err := api.Users.CreateUser(r.Context(), &user); err != nil {
			writeError(w, api.Log, err)
			return
		}
		user.Password = ""
		writeJSON(w, http.StatusCreated, user)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// LoginHandler checks credentials and returns a session token, also set as
// the auth_token cookie.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
func LoginHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, api.Log, err)
			return
		}

		user, err := api.Users.AuthenticateUser(r.Context(), req.Email, req.Password)
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}
		if err != nil {
			writeError(w, api.Log, err)
			return
		}

		token, err := api.Tokens.IssueToken(user.ID)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.CookieName,
			Value:    token,
			HttpOnly: true,
			Path:     "/",
			MaxAge:   int(api.Tokens.Expiry.Seconds()),
		})
		writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
	}
}

// MeHandler returns the authenticated user's profile.
func MeHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := api.Users.GetUserByID(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		user.Password = ""
		writeJSON(w, http.StatusOK, user)
	}
}

// DeleteMeHandler deletes the account along with its presets.
func DeleteMeHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.Users.DeleteUser(r.Context(), middleware.UserID(r.Context())); err != nil {
			writeError(w, api.Log, err)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: middleware.CookieName, Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	}
}

func usernameFor(ctx context.Context, api *API, userID uuid.UUID) (string, error) {
	user, err := api.Users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}
