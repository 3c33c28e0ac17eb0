// Package service provides business logic for the application.
package service

import "errors"

// Service errors.
var (
	ErrAlreadyRegistered = errors.New("already registered with remaining requests")
	ErrUserNotFound      = errors.New("user not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrMissingFields     = errors.New("name or description is required")
)
