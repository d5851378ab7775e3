package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidTransition is returned when an operation is not allowed from the
	// current verification status.
	ErrInvalidTransition = errors.New("invalid verification transition")
	// ErrMissingImages is returned by submit when a required image type is absent.
	ErrMissingImages = errors.New("verification images missing")
	// ErrPayloadTooLarge is returned when an encoded image exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")
)
