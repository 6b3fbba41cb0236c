package mapbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _ domain.Coordinate) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Plaza Mayor", FormattedAddress: "Plaza Mayor, Madrid"}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, time.Hour, metrics)

	r1, err := cached.ReverseGeocode(context.Background(), plazaMayor)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), plazaMayor)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Place", FormattedAddress: "Place, Madrid"}}
	cached := NewCachedGeocoder(inner, 10, time.Hour, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), plazaMayor)
	_, _ = cached.ReverseGeocode(context.Background(), domain.Coordinate{Lat: 40.4169, Lng: -3.7035})

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, time.Hour, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), plazaMayor)
	inner.err = errors.New("mapbox down")
	_, err := cached.ReverseGeocode(context.Background(), plazaMayor)

	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "P", FormattedAddress: "P"}}
	cached := NewCachedGeocoder(inner, 1, time.Hour, observability.NewMetricsForTesting())
	other := domain.Coordinate{Lat: 1, Lng: 1}

	_, _ = cached.ReverseGeocode(context.Background(), plazaMayor)
	_, _ = cached.ReverseGeocode(context.Background(), other)
	_, _ = cached.ReverseGeocode(context.Background(), plazaMayor)

	assert.Equal(t, 3, inner.calls)
}

func TestCacheKeyRoundsToMicrodegrees(t *testing.T) {
	assert.Equal(t, "rev:40.415500,-3.707400", cacheKey(plazaMayor))
	assert.Equal(t, cacheKey(plazaMayor), cacheKey(domain.Coordinate{Lat: 40.41550004, Lng: -3.70740004}))
}
