package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrSessionNotTerminal = errors.New("session is not in a terminal state")
	ErrInvalidStatus      = errors.New("invalid field status")
)
