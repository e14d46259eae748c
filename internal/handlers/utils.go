// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/sirupsen/logrus"
)

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrLobbyFull), errors.Is(err, models.ErrAlreadyStarted), errors.Is(err, models.ErrRoundNotActive):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNoSelection):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotHost), errors.Is(err, models.ErrOutOfRange):
		return http.StatusForbidden
	case errors.Is(err, models.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Server-side failures are logged and
// their details withheld.
func writeError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Errorf("request failed: %v", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: bad request payload: %v", models.ErrValidation, err)
}

func lobbyCode(r *http.Request) string {
	return strings.ToUpper(mux.Vars(r)["code"])
}
