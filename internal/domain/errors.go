package domain

import "errors"

var (
	// ErrNotAListing is returned when a feed node is not a usable marketplace listing.
	// Callers drop the node silently.
	ErrNotAListing = errors.New("feed node is not a listing")

	// ErrClassifierUnavailable is returned when the remote resellability classifier cannot be used
	ErrClassifierUnavailable = errors.New("remote classifier unavailable")

	// ErrNoMatches is returned when no comparable sold items were found in any stage
	ErrNoMatches = errors.New("no comparable sold items found")

	// ErrComputationFailed is returned when profit metrics cannot be computed from the inputs
	ErrComputationFailed = errors.New("profit computation failed")

	// ErrUnauthorized is returned when the bearer token is missing or invalid
	ErrUnauthorized = errors.New("missing or invalid authorization token")

	// ErrSubscriptionInactive is returned when the account subscription is expired or disabled
	ErrSubscriptionInactive = errors.New("subscription expired or inactive")

	// ErrQuotaExceeded is returned when the account has used up its monthly API quota
	ErrQuotaExceeded = errors.New("API usage limit exceeded")

	// ErrUpstreamFailure is returned when a third-party API (eBay, language model) fails
	ErrUpstreamFailure = errors.New("upstream API request failed")

	// ErrNetworkFailure is returned when a request could not reach the proxy at all
	ErrNetworkFailure = errors.New("network request failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotFound is returned when a stored record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrRateLimited is returned when the per-client rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)

// IsHardStop reports whether err must stop any further remote calls for a listing.
// Auth, subscription and quota failures will fail identically on every later stage.
func IsHardStop(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrSubscriptionInactive) ||
		errors.Is(err, ErrQuotaExceeded)
}
