package deezer

import (
	"errors"
	"strings"
)

var (
	// ErrUnexpectedHTTPStatus indicates an unexpected HTTP status code was received.
	ErrUnexpectedHTTPStatus = errors.New("unexpected HTTP status")
	// ErrInvalidARL indicates that the configured ARL cookie did not authenticate a real account.
	ErrInvalidARL = errors.New("arl cookie is invalid or expired")
	// ErrStaleAPIToken indicates that the gateway rejected the CSRF token and a refresh is needed.
	ErrStaleAPIToken = errors.New("api token is stale")
	// ErrGatewayError indicates a gateway-level error other than a stale token.
	ErrGatewayError = errors.New("gateway error")
	// ErrTrackNotFound indicates that the requested track does not exist.
	ErrTrackNotFound = errors.New("track not found")
	// ErrAlbumNotFound indicates that the requested album does not exist.
	ErrAlbumNotFound = errors.New("album not found")
	// ErrPlaylistNotFound indicates that the requested playlist does not exist.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrNoMediaSources indicates that the media endpoint granted no usable stream URL.
	ErrNoMediaSources = errors.New("no media sources returned")
	// ErrEmptyTrackToken indicates that track metadata carried no rights token.
	ErrEmptyTrackToken = errors.New("track has no rights token")
)

// RightsErrorPrefix marks a GetDownloadURL result that is a rights/geo
// restriction rather than a stream URL. Callers must treat such results as
// terminal and non-retryable.
const RightsErrorPrefix = "RIGHTS_ERROR:"

// Rights error categories appended after RightsErrorPrefix.
const (
	// RightsErrorUnavailable means the track cannot be streamed at all.
	RightsErrorUnavailable = "unavailable"
	// RightsErrorGeoRestricted means the track is not licensed for the account's country.
	RightsErrorGeoRestricted = "geo_restricted"
	// RightsErrorSubscriptionRequired means the requested quality needs a paid subscription.
	RightsErrorSubscriptionRequired = "subscription_required"
)

// IsRightsError reports whether a GetDownloadURL result carries a rights error
// instead of a stream URL.
func IsRightsError(result string) bool {
	return strings.HasPrefix(result, RightsErrorPrefix)
}

// RightsErrorCategory extracts the category from a rights error result.
// It returns an empty string when the result is not a rights error.
func RightsErrorCategory(result string) string {
	if !IsRightsError(result) {
		return ""
	}

	return strings.TrimPrefix(result, RightsErrorPrefix)
}
