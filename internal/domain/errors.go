package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrCodeNotFound        = errors.New("verification code not found or expired")
	ErrCodeMismatch        = errors.New("invalid verification code")
	ErrDuplicateIdentity   = errors.New("user already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrDeliveryUnavailable = errors.New("no delivery transport configured")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)
