// Package apperrors holds the sentinel errors shared across modules. Callers
// wrap them with %w and match with errors.Is.
package apperrors

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Timer state errors.
var (
	ErrNoActiveSession     = errors.New("no active session")
	ErrActiveSessionExists = errors.New("active session already exists")
	ErrSessionNotRunning   = errors.New("session is not running")
	ErrSessionNotPaused    = errors.New("session is not paused")
)

// ErrRemoteUnavailable is returned by the offline remote store and reported
// when the user document cannot be loaded.
var ErrRemoteUnavailable = errors.New("remote store unavailable")
