package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrProviderUnavailable is returned when an external extraction backend cannot be reached
	ErrProviderUnavailable = errors.New("extraction provider unavailable")

	// ErrProviderNotConfigured is returned when the requested provider is not registered
	ErrProviderNotConfigured = errors.New("extraction provider not configured")

	// ErrNothingExtracted is returned when no source produced a single usable field
	ErrNothingExtracted = errors.New("no usable fields extracted")

	// ErrNoSourceAvailable is returned when no extraction source could be reached at all
	ErrNoSourceAvailable = errors.New("no extraction source available")

	// ErrStaleResult is returned when a late result was computed for superseded input
	ErrStaleResult = errors.New("extraction result is stale")

	// ErrDraftNotFound is returned when a draft session does not exist
	ErrDraftNotFound = errors.New("draft not found")

	// ErrTooManyDimensions is returned when more than two size dimensions are active
	ErrTooManyDimensions = errors.New("at most two size dimensions may be active")

	// ErrImageDecode is returned when image bytes cannot be loaded or decoded
	ErrImageDecode = errors.New("image could not be decoded")
)
