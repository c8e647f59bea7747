package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound              = errors.New("resource not found")
	ErrConflict              = errors.New("resource already exists")
	ErrValidation            = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrUnavailableDependency = errors.New("dependency unavailable")
	ErrStorage               = errors.New("storage failure")

	// ErrUnresolvableFingerprint signals that the client signals were too
	// malformed to derive a fingerprint. Callers fall back to the
	// unknown-device fingerprint instead of rejecting the attempt.
	ErrUnresolvableFingerprint = errors.New("unresolvable device fingerprint")
)
