// Package repository provides the in-process stores shared by all requests.
// Every store synchronizes internally and lives for the whole process.
package repository

import "errors"

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrTokenExists       = errors.New("token already exists")
	ErrAlreadyRegistered = errors.New("ip already holds a funded token")
	ErrQuotaExhausted    = errors.New("request credits exhausted")
	ErrInvalidAmount     = errors.New("credit amount must not be negative")
	ErrItemNotFound      = errors.New("item not found")
)
