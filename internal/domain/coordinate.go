package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ErrInvalidCoordinate is returned when a location string cannot be parsed.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ParseCoordinate parses a "lat,lng" location string.
func ParseCoordinate(s string) (Coordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: %q: expected \"lat,lng\"", ErrInvalidCoordinate, s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q: latitude: %v", ErrInvalidCoordinate, s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q: longitude: %v", ErrInvalidCoordinate, s, err)
	}

	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("%w: %q: out of range", ErrInvalidCoordinate, s)
	}
	return c, nil
}

// Valid reports whether the coordinate lies within the WGS-84 ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// String formats the coordinate in the "lat,lng" form used by the
// distribution service.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}
