package application

import "errors"

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("mapping session: not found")
	// ErrSessionNotReady is returned when a session is used before its rows are loaded.
	ErrSessionNotReady = errors.New("mapping session: not ready")
	// ErrSaveInProgress is returned when a save overlaps another save of the same session.
	ErrSaveInProgress = errors.New("mapping session: save in progress")
)
