// Package common holds the sentinel errors shared by the store, service and
// API layers. Callers match them with errors.Is.
package common

import "errors"

var (
	// Request-level errors.
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")

	// Token errors. An expired token matches both ErrInvalidToken and ErrTokenExpired.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Store-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrStorage  = errors.New("storage failure")
)
