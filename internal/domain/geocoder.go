package domain

import "context"

// GeocodingResult contains place data returned by a geocoding provider.
type GeocodingResult struct {
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder names the place at a coordinate so targets can be shown as
// "Plaza Mayor" instead of raw degrees.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, at Coordinate) (GeocodingResult, error)
}
