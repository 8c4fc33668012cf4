package auth

import "errors"

// Authentication errors. Missing and unknown keys both map to
// UNAUTHENTICATED so a failure never confirms which keys exist.
var (
	ErrMissingKey = errors.New("API key required in x-api-key metadata")
	ErrInvalidKey = errors.New("invalid API key")
	ErrNoKeys     = errors.New("no API keys configured")
)
