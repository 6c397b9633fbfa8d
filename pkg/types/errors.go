package types

import "errors"

// Sentinel errors shared across the service. Callers classify failures with
// errors.Is and wrap these with fmt.Errorf("...: %w", err) for context.
var (
	// ErrAlreadyRunning is returned when a refresh is requested while
	// another refresh holds the orchestrator lock.
	ErrAlreadyRunning = errors.New("refresh already running")

	// ErrUpstreamUnavailable is returned when a marketplace could not
	// produce any usable catalogue data.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAuthFailed is returned when a marketplace rejects the stored
	// credentials (HTTP 403 after the single auth retry).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited is returned when a marketplace keeps throttling
	// requests after all retry attempts are exhausted.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrValidationFailed is returned for malformed settings, credentials
	// or query parameters.
	ErrValidationFailed = errors.New("validation failed")

	// ErrPersistFailed is returned when writing a state file to disk fails.
	ErrPersistFailed = errors.New("persist failed")
)
