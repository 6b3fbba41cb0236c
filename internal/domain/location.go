package domain

import (
	"context"
	"errors"
	"time"
)

// PositionOptions mirror the options of the platform getCurrentPosition call.
type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// DefaultPositionOptions are the fixed acquisition options of the claim flow.
var DefaultPositionOptions = PositionOptions{
	EnableHighAccuracy: true,
	Timeout:            10 * time.Second,
	MaximumAge:         60 * time.Second,
}

// Position is a fix reported by a location platform.
type Position struct {
	Coordinate Coordinate
	Accuracy   float64 // meters, 0 when unknown
	Timestamp  time.Time
}

// PositionErrorCode follows the W3C GeolocationPositionError codes.
type PositionErrorCode int

const (
	PositionOther            PositionErrorCode = 0
	PositionPermissionDenied PositionErrorCode = 1
	PositionUnavailable      PositionErrorCode = 2
	PositionTimeout          PositionErrorCode = 3
)

// PositionError is the failure reported by a location platform.
type PositionError struct {
	Code    PositionErrorCode
	Message string
}

func (e *PositionError) Error() string {
	return e.Message
}

// LocationPlatform is the device or network capability that produces fixes.
type LocationPlatform interface {
	// CurrentPosition returns a fix no older than opts.MaximumAge. Failures
	// should be *PositionError; any other error is treated as PositionOther.
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
}

// LocationErrorKind classifies why a fix could not be acquired.
type LocationErrorKind string

const (
	LocationPermissionDenied LocationErrorKind = "permission-denied"
	LocationTimeout          LocationErrorKind = "timeout"
	LocationUnavailable      LocationErrorKind = "position-unavailable"
	LocationOther            LocationErrorKind = "other"
	LocationUnsupported      LocationErrorKind = "unsupported"
)

// LocationError is the user-facing acquisition error held in LocationState.
type LocationError struct {
	Kind    LocationErrorKind `json:"kind"`
	Message string            `json:"message"`
}

func (e *LocationError) Error() string {
	return e.Message
}

// NewLocationError maps a platform failure to a LocationError.
func NewLocationError(err error) *LocationError {
	var pe *PositionError
	if !errors.As(err, &pe) {
		return &LocationError{Kind: LocationOther, Message: "could not get location: " + err.Error()}
	}
	switch pe.Code {
	case PositionPermissionDenied:
		return &LocationError{Kind: LocationPermissionDenied, Message: "location permission denied"}
	case PositionTimeout:
		return &LocationError{Kind: LocationTimeout, Message: "location request timed out"}
	case PositionUnavailable:
		return &LocationError{Kind: LocationUnavailable, Message: "location unavailable"}
	default:
		return &LocationError{Kind: LocationOther, Message: "could not get location: " + pe.Message}
	}
}

// ErrLocationUnsupported is the error for sessions without a platform.
var ErrLocationUnsupported = &LocationError{
	Kind:    LocationUnsupported,
	Message: "geolocation is not supported on this device",
}

// LocationState is the per-session location snapshot.
type LocationState struct {
	Current *Coordinate    `json:"current"`
	Error   *LocationError `json:"error"`
}

// LocationResult is the tagged outcome of one acquisition: exactly one of
// Coordinate and Err is set.
type LocationResult struct {
	Coordinate *Coordinate
	Err        *LocationError
}

// OK reports whether the acquisition succeeded.
func (r LocationResult) OK() bool {
	return r.Err == nil && r.Coordinate != nil
}
