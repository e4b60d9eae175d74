// Package apperr holds the error kinds shared by the dispatch components.
// Concrete errors wrap one of these values, so callers classify them with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound is returned when an entity is missing by id, serial number or phone.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an entity exists but cannot take the requested action,
	// e.g. an inactive tablet trying to register a push token.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrDispatch is returned when the push provider call failed or reported failures.
	ErrDispatch = errors.New("dispatch failed")
	// ErrPersistence is returned when a transaction could not be committed.
	ErrPersistence = errors.New("persistence failed")
)
