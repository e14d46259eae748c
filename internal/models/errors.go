// internal/models/errors.go
package models

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrLobbyFull      = errors.New("lobby is full")
	ErrAlreadyStarted = errors.New("game already started")
	ErrValidation     = errors.New("validation failed")
	ErrTransient      = errors.New("store unavailable")

	ErrNotHost        = errors.New("only the host can perform this action")
	ErrRoundNotActive = errors.New("no round in progress")
	ErrTargetNotFound = errors.New("target not in remaining list")
	ErrOutOfRange     = errors.New("player is not within range of the target")
	ErrNoSelection    = errors.New("no target selected for guessing")
)
