package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrMissingCredential is returned when the AI provider has no API key configured
	ErrMissingCredential = errors.New("AI provider credential is not configured")

	// ErrAnalysisFailed is returned when the AI provider call itself fails.
	// Malformed provider output is not an error; it degrades to DefaultAnalysisResponse.
	ErrAnalysisFailed = errors.New("AI analysis request failed")

	// ErrProductNotFound is returned when the product backend has no product for an EAN
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidEAN is returned when a scanned or requested code is not a valid barcode
	ErrInvalidEAN = errors.New("invalid EAN barcode")

	// ErrBackendFailure is returned when the product backend is unreachable or returns non-2xx
	ErrBackendFailure = errors.New("product backend request failed")

	// ErrUnauthorized is returned when a session or backend token is missing, expired or revoked
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmailTaken is returned on signup when the email already belongs to a user
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound is returned by user repositories on lookup miss
	ErrUserNotFound = errors.New("user not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
