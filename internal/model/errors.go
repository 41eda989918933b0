package model

import "errors"

// Common errors used across the application
var (
	// Registry errors
	ErrPlayerNotFound      = errors.New("player not found")
	ErrDuplicateConnection = errors.New("connection already has a player")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
)
